// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"net/http"

	"github.com/ThiagoMGLima/voxel3D/internal/acquire"
	"github.com/ThiagoMGLima/voxel3D/internal/app"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
)

func main() {
	log.Println("starting voltage debug tool (standalone)")

	if err := config.InitGlobal("voxel_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Checking voltage source...")
	if src, closeSrc, err := acquire.Open(config.Get()); err != nil {
		log.Printf("Warning: voltage source unavailable: %v", err)
		log.Println("Continuing anyway - the source is reopened per session")
	} else {
		if v, err := src.ReadVoltage(); err != nil {
			log.Printf("Warning: test read failed: %v", err)
		} else {
			log.Printf("Voltage source OK, reading %.3f V", v)
		}
		closeSrc()
	}

	http.HandleFunc("/ws", app.HandleVoltageDebugWS)

	// API endpoint for a one-shot voltage sample
	http.HandleFunc("/api/voltage", app.HandleVoltageOnce)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/voltage_debug.html")
	})

	addr := ":8081"
	log.Printf("Voltage debug tool listening on %s", addr)
	log.Printf("Open http://localhost:8081 in your browser")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
