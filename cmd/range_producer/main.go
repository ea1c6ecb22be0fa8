// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package main

import (
	"flag"
	"log"

	"github.com/ThiagoMGLima/voxel3D/internal/app"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
)

func main() {
	configPath := flag.String("config", "./voxel_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting voxel3d range producer (GP2Y0A41SK0F → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRangeProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
