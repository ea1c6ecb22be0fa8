package main

import (
	"log"

	"github.com/ThiagoMGLima/voxel3D/internal/app"
	"github.com/ThiagoMGLima/voxel3D/internal/config"
)

func main() {
	log.Println("starting voxel3d console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("voxel_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
