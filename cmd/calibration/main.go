// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/calibration/main.go
//
// Guided calibration for the GP2Y0A41SK0F IR rangefinder.
// For each reference distance you place a flat target at a hand-measured
// distance from the sensor face and the tool captures an averaged,
// outlier-filtered voltage.
//
// Output:
//
//	Writes the calibration JSON (voltage → distance points plus
//	leave-one-out fit error statistics) to the configured path.
//
// Run:
//
//	go run ./cmd/calibration
//
// Notes / assumptions:
//   - Distances are measured from the sensor face to the target, in cm.
//   - Use a flat, light-colored target wider than the sensor's beam.
//   - With 4 or more points the conversion uses a natural cubic spline;
//     with 2-3 points it falls back to piecewise linear interpolation.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

const (
	settleSeconds = 3 // countdown before each capture

	defaultDistances = "30,25,20,15,12,10,8,6,4"
)

// ---------- Main ----------

func main() {
	in := bufio.NewReader(os.Stdin)

	// Parse command-line flags
	configPath := flag.String("config", "./voxel_config.txt", "Path to configuration file")
	outPath := flag.String("out", "", "Output path for the calibration file (default: CALIBRATION_PATH from config)")
	distancesFlag := flag.String("distances", defaultDistances, "Comma-separated reference distances in cm, far to near")
	appendFlag := flag.Bool("append", false, "Load the existing calibration file first and add to it")
	flag.Parse()

	fmt.Println("=== Guided Rangefinder Calibration ===")
	fmt.Println("You will place a target at each reference distance; the tool captures")
	fmt.Printf("%d filtered samples per point and fits the conversion curve.\n", distance.CalibrationSampleCount)
	fmt.Println()

	// Initialize configuration
	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	distances, err := parseDistances(*distancesFlag)
	if err != nil {
		fatal(err)
	}

	// Open the voltage source
	src, closeSrc, err := acquire.Open(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeSrc()

	pipe, err := distance.NewPipeline(src, distance.Options{
		SensorModel:    cfg.SensorModel,
		SamplesPerRead: cfg.SamplesPerRead,
		WindowSize:     cfg.WindowSize,
		KalmanQ:        cfg.KalmanQ,
		KalmanR:        cfg.KalmanR,
		KalmanP0:       cfg.KalmanP0,
		MADThreshold:   cfg.MADThreshold,
	})
	if err != nil {
		fatal(err)
	}

	if *appendFlag {
		if err := pipe.LoadCalibration(cfg.CalibrationPath); err != nil {
			if !errors.Is(err, distance.ErrCalibrationUnavailable) {
				fatal(err)
			}
			fmt.Printf("No usable calibration at %s, starting fresh.\n", cfg.CalibrationPath)
		} else {
			fmt.Printf("Loaded %d existing points from %s.\n", len(pipe.CalibrationPoints()), cfg.CalibrationPath)
		}
	}

	fmt.Printf("Capturing %d reference distances: %s cm\n", len(distances), *distancesFlag)

	// ---------- Capture loop ----------

	for i, d := range distances {
		fmt.Printf("\nPoint %d/%d: %.1f cm\n", i+1, len(distances), d)
		if d < distance.MinDistanceCM || d > distance.MaxDistanceCM {
			fmt.Printf("Warning: %.1f cm is outside the sensor's %g-%g cm span.\n",
				d, distance.MinDistanceCM, distance.MaxDistanceCM)
		}
		waitEnter(in, "Place the target and press ENTER to capture...")

		for s := settleSeconds; s > 0; s-- {
			fmt.Printf("  capturing in %d...\n", s)
			time.Sleep(time.Second)
		}

		voltage, err := pipe.CalibrateAddPoint(d)
		if err != nil {
			fmt.Printf("Warning: capture at %.1f cm failed: %v (skipping)\n", d, err)
			continue
		}
		fmt.Printf("  captured: %.1f cm = %.3f V\n", d, voltage)
	}

	// ---------- Results ----------

	points := pipe.CalibrationPoints()
	if len(points) < 2 {
		fatal(errors.New("fewer than 2 points captured, nothing to save"))
	}

	fmt.Println("\nCaptured points (sorted by distance):")
	for _, p := range points {
		fmt.Printf("  %5.1f cm -> %.3f V\n", p.DistanceCM, p.Voltage)
	}

	if len(points) >= 4 {
		fmt.Println("Conversion curve: natural cubic spline")
	} else {
		fmt.Println("Conversion curve: piecewise linear")
	}

	if st, err := pipe.CalibrationErrorStats(); err == nil {
		fmt.Printf("Leave-one-out fit error: mean=%.3f cm stddev=%.3f cm\n", st.MeanAbsError, st.StdDev)
	} else {
		fmt.Printf("Fit error statistics unavailable: %v\n", err)
	}

	// ---------- Save ----------

	path := *outPath
	if path == "" {
		path = cfg.CalibrationPath
	}
	if err := pipe.SaveCalibration(path); err != nil {
		fatal(err)
	}

	fmt.Println("\nCalibration complete.")
	fmt.Printf("Saved to %s\n", path)
}

// ---------- Console helpers ----------

func parseDistances(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid distance %q: %w", p, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid distance %q: must be positive", p)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errors.New("no distances given")
	}
	return out, nil
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
