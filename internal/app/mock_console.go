// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"fmt"
	"log"
	"time"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire" // adjust to your module path
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

// RunMockConsole drives a pipeline off the simulated sensor and prints
// every reading. Handy for eyeballing the filter without hardware or a
// broker.
func RunMockConsole() error {
	pipe, err := distance.NewPipeline(acquire.NewSimSource(0), distance.Options{})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	log.Println("starting console UI (simulated sensor)")

	n := 0
	for range ticker.C {
		r, err := pipe.Read()
		if err != nil {
			log.Printf("read error: %v", err)
			continue
		}

		marker := " "
		if !r.InRange {
			marker = "!"
		}
		fmt.Printf("DIST=%6.2f cm%s  RAW=%6.2f cm  STD=%5.2f  VOLT=%5.3f V\n",
			r.DistanceCM, marker, r.RawDistanceCM, r.StdDevCM, r.Voltage)

		n++
		if n%25 == 0 {
			s := pipe.Stats()
			fmt.Printf("-- %d readings | mean=%.2f cm  min=%.2f  max=%.2f | rate=%.1f Hz\n",
				s.Readings, s.DistanceMeanCM, s.DistanceMinCM, s.DistanceMaxCM, s.RateHz)
		}
	}
	return nil
}
