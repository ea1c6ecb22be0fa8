// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/ThiagoMGLima/voxel3D/internal/app"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
)

func main() {
	log.Println("starting voxel3d web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("voxel_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: stop the range producer before calibrating, the session opens the sensor itself")

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
