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

	log.Println("starting voxel3d OLED display (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
