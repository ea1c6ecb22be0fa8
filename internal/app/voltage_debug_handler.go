// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

const (
	defaultStreamIntervalMS = 200
	minStreamIntervalMS     = 10
	maxStreamIntervalMS     = 5000
	defaultPrecisionSamples = 100
	maxPrecisionSamples     = 1000
)

// VoltageDebugSession holds WebSocket connection state for raw voltage inspection
type VoltageDebugSession struct {
	Conn    *websocket.Conn
	writeMu sync.Mutex

	src       distance.Source
	closeSrc  func()
	stop      chan struct{}
	streaming bool
}

// WebSocket message types for voltage debugging
type VoltageDebugCmd struct {
	Action     string  `json:"action"` // "read", "precision", "stream", "stop"
	IntervalMS float64 `json:"interval_ms,omitempty"`
	Count      int     `json:"count,omitempty"`
}

// Response types
type VoltageDebugResponse struct {
	Type        string  `json:"type"` // "sample", "stats", "status", "error"
	Voltage     float64 `json:"voltage,omitempty"`
	TimestampMS int64   `json:"timestamp_ms,omitempty"`
	Count       int     `json:"count,omitempty"`
	Mean        float64 `json:"mean,omitempty"`
	StdDev      float64 `json:"stddev,omitempty"`
	Min         float64 `json:"min,omitempty"`
	Max         float64 `json:"max,omitempty"`
	Message     string  `json:"message,omitempty"`
	Source      string  `json:"source,omitempty"`
}

// HandleVoltageDebugWS handles the WebSocket connection for raw voltage debugging
func HandleVoltageDebugWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("voltage_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	cfg := config.Get()
	src, closeSrc, err := acquire.Open(cfg)
	if err != nil {
		log.Printf("voltage_debug: source open error: %v", err)
		conn.WriteJSON(VoltageDebugResponse{Type: "error", Message: err.Error()})
		return
	}

	session := &VoltageDebugSession{Conn: conn, src: src, closeSrc: closeSrc}
	defer session.shutdown()

	session.send(VoltageDebugResponse{
		Type:    "status",
		Source:  cfg.Source,
		Message: "voltage source open",
	})

	// Message loop
	for {
		var rawMsg map[string]interface{}
		err := conn.ReadJSON(&rawMsg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("voltage_debug: websocket error: %v", err)
			}
			break
		}

		action, ok := rawMsg["action"].(string)
		if !ok {
			session.sendError("missing or invalid action field")
			continue
		}

		// Route based on action
		switch action {
		case "read":
			session.handleRead()
		case "precision":
			session.handlePrecision(rawMsg)
		case "stream":
			session.handleStream(rawMsg)
		case "stop":
			session.handleStop()
		default:
			session.sendError(fmt.Sprintf("unknown action: %s", action))
		}
	}
}

func (s *VoltageDebugSession) handleRead() {
	if s.streaming {
		s.sendError("stop the stream first")
		return
	}

	voltage, err := s.src.ReadVoltage()
	if err != nil {
		s.sendError(fmt.Sprintf("read error: %v", err))
		return
	}

	s.send(VoltageDebugResponse{
		Type:        "sample",
		Voltage:     voltage,
		TimestampMS: time.Now().UnixMilli(),
	})
}

// handlePrecision grabs a burst of raw samples and reports spread
// statistics, the quickest way to judge sensor noise on the bench.
func (s *VoltageDebugSession) handlePrecision(rawMsg map[string]interface{}) {
	if s.streaming {
		s.sendError("stop the stream first")
		return
	}

	count := defaultPrecisionSamples
	if v, ok := rawMsg["count"].(float64); ok && v > 0 {
		count = int(v)
	}
	if count > maxPrecisionSamples {
		count = maxPrecisionSamples
	}

	samples := make([]float64, count)
	for i := range samples {
		voltage, err := s.src.ReadVoltage()
		if err != nil {
			s.sendError(fmt.Sprintf("read error at sample %d/%d: %v", i+1, count, err))
			return
		}
		samples[i] = voltage
	}

	s.send(VoltageDebugResponse{
		Type:   "stats",
		Count:  count,
		Mean:   stat.Mean(samples, nil),
		StdDev: stat.PopStdDev(samples, nil),
		Min:    floats.Min(samples),
		Max:    floats.Max(samples),
	})
}

func (s *VoltageDebugSession) handleStream(rawMsg map[string]interface{}) {
	if s.streaming {
		s.sendError("stream already running")
		return
	}

	intervalMS := float64(defaultStreamIntervalMS)
	if v, ok := rawMsg["interval_ms"].(float64); ok && v > 0 {
		intervalMS = v
	}
	if intervalMS < minStreamIntervalMS {
		intervalMS = minStreamIntervalMS
	}
	if intervalMS > maxStreamIntervalMS {
		intervalMS = maxStreamIntervalMS
	}

	s.stop = make(chan struct{})
	s.streaming = true
	stop := s.stop

	go func() {
		ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				voltage, err := s.src.ReadVoltage()
				if err != nil {
					s.sendError(fmt.Sprintf("stream read error: %v", err))
					continue
				}
				s.send(VoltageDebugResponse{
					Type:        "sample",
					Voltage:     voltage,
					TimestampMS: time.Now().UnixMilli(),
				})
			}
		}
	}()

	s.send(VoltageDebugResponse{
		Type:    "status",
		Message: fmt.Sprintf("streaming every %.0f ms", intervalMS),
	})
	log.Printf("voltage_debug: stream started at %.0f ms", intervalMS)
}

func (s *VoltageDebugSession) handleStop() {
	if !s.streaming {
		s.sendError("no stream running")
		return
	}
	close(s.stop)
	s.streaming = false
	s.send(VoltageDebugResponse{Type: "status", Message: "stream stopped"})
	log.Printf("voltage_debug: stream stopped")
}

func (s *VoltageDebugSession) shutdown() {
	if s.streaming {
		close(s.stop)
		s.streaming = false
	}
	if s.closeSrc != nil {
		s.closeSrc()
		s.closeSrc = nil
	}
}

// send serializes writes; the stream goroutine and the message loop
// share the connection.
func (s *VoltageDebugSession) send(resp VoltageDebugResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.Conn.WriteJSON(resp)
}

func (s *VoltageDebugSession) sendError(message string) {
	s.send(VoltageDebugResponse{
		Type:    "error",
		Message: message,
	})
}

// HandleVoltageOnce serves a single raw voltage sample via REST API
func HandleVoltageOnce(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	src, closeSrc, err := acquire.Open(config.Get())
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error": "%v"}`, err), http.StatusInternalServerError)
		return
	}
	defer closeSrc()

	voltage, err := src.ReadVoltage()
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error": "%v"}`, err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"voltage":      voltage,
		"timestamp_ms": time.Now().UnixMilli(),
	})
}
