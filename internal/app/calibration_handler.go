// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// calibrationMu admits one calibration session at a time; a second
// client would fight the first over the ADC.
var calibrationMu sync.Mutex

// CalibrationSession holds the state of an active calibration
type CalibrationSession struct {
	Conn *websocket.Conn

	pipe     *distance.Pipeline
	closeSrc func()
}

// WebSocket message types
type WSMessage struct {
	Action     string  `json:"action"` // start, capture, clear, finish, cancel
	DistanceCM float64 `json:"distance_cm,omitempty"`
}

type WSResponse struct {
	Type       string               `json:"type"` // status, progress, point, stats, complete, error
	Message    string               `json:"message,omitempty"`
	Progress   float64              `json:"progress,omitempty"`
	DistanceCM float64              `json:"distance_cm,omitempty"`
	Voltage    float64              `json:"voltage,omitempty"`
	Points     []distance.Point     `json:"points,omitempty"`
	ErrorStats *distance.ErrorStats `json:"error_stats,omitempty"`
	Path       string               `json:"path,omitempty"`
}

// HandleCalibrationWS handles the WebSocket connection for calibration
func HandleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if !calibrationMu.TryLock() {
		conn.WriteJSON(WSResponse{Type: "error", Message: "another calibration session is running"})
		return
	}
	defer calibrationMu.Unlock()

	session := &CalibrationSession{Conn: conn}
	defer session.closeSource()

	// Main message loop
	for {
		var msg WSMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			break
		}

		switch msg.Action {
		case "start":
			if err := session.start(); err != nil {
				session.sendError(err.Error())
				continue
			}
			log.Printf("calibration: session started")

		case "capture":
			if err := session.capture(msg.DistanceCM); err != nil {
				session.sendError(err.Error())
			}

		case "clear":
			if session.pipe == nil {
				session.sendError("session not started")
				continue
			}
			session.pipe.ClearCalibration()
			session.sendPoints()
			log.Printf("calibration: points cleared")

		case "finish":
			if err := session.finish(); err != nil {
				session.sendError(err.Error())
			}

		case "cancel":
			log.Printf("calibration: cancelled by user")
			return
		}
	}
}

// start opens the configured voltage source and builds a fresh
// pipeline for the session.
func (s *CalibrationSession) start() error {
	if s.pipe != nil {
		s.sendStatus("session already started")
		return nil
	}

	cfg := config.Get()
	src, closeSrc, err := acquire.Open(cfg)
	if err != nil {
		return err
	}
	pipe, err := newPipeline(cfg, src)
	if err != nil {
		closeSrc()
		return err
	}

	s.pipe = pipe
	s.closeSrc = closeSrc
	s.sendStatus("source open, place the target and capture points")
	s.sendPoints()
	return nil
}

// capture grabs one reference point at the distance the operator
// measured by hand.
func (s *CalibrationSession) capture(distanceCM float64) error {
	if s.pipe == nil {
		return fmt.Errorf("session not started")
	}
	if distanceCM < distance.MinDistanceCM || distanceCM > distance.MaxDistanceCM {
		s.sendStatus(fmt.Sprintf("warning: %.1f cm is outside the sensor's %g-%g cm range", distanceCM, distance.MinDistanceCM, distance.MaxDistanceCM))
	}

	// Give the operator a moment to steady the target.
	s.sendStatus(fmt.Sprintf("capturing %.1f cm, hold the target still", distanceCM))
	for i := 1; i <= 4; i++ {
		time.Sleep(500 * time.Millisecond)
		s.sendProgress(float64(i) * 10)
	}

	voltage, err := s.pipe.CalibrateAddPoint(distanceCM)
	if err != nil {
		return err
	}
	s.sendProgress(100)

	s.Conn.WriteJSON(WSResponse{
		Type:       "point",
		DistanceCM: distanceCM,
		Voltage:    voltage,
		Points:     s.pipe.CalibrationPoints(),
	})
	log.Printf("calibration: captured %.1f cm = %.3f V", distanceCM, voltage)
	return nil
}

// finish grades the point set, saves it and reports the result.
func (s *CalibrationSession) finish() error {
	if s.pipe == nil {
		return fmt.Errorf("session not started")
	}

	resp := WSResponse{Type: "stats", Points: s.pipe.CalibrationPoints()}
	if st, err := s.pipe.CalibrationErrorStats(); err == nil {
		resp.ErrorStats = &st
	}
	s.Conn.WriteJSON(resp)

	cfg := config.Get()
	if err := s.pipe.SaveCalibration(cfg.CalibrationPath); err != nil {
		return err
	}
	log.Printf("calibration: saved %d points to %s", len(s.pipe.CalibrationPoints()), cfg.CalibrationPath)

	s.Conn.WriteJSON(WSResponse{
		Type: "complete",
		Path: cfg.CalibrationPath,
	})
	return nil
}

func (s *CalibrationSession) closeSource() {
	if s.closeSrc != nil {
		s.closeSrc()
		s.closeSrc = nil
	}
}

func (s *CalibrationSession) sendStatus(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "status",
		Message: message,
	})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.Conn.WriteJSON(WSResponse{
		Type:     "progress",
		Progress: progress,
	})
}

func (s *CalibrationSession) sendPoints() {
	s.Conn.WriteJSON(WSResponse{
		Type:   "point",
		Points: s.pipe.CalibrationPoints(),
	})
}

func (s *CalibrationSession) sendError(message string) {
	s.Conn.WriteJSON(WSResponse{
		Type:    "error",
		Message: message,
	})
}
