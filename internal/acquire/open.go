// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"fmt"
	"log"

	"github.com/ThiagoMGLima/voxel3D/internal/config"
	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

// Open builds the voltage source named by SOURCE in the config and
// returns it with its cleanup func.
func Open(cfg *config.Config) (distance.Source, func(), error) {
	switch cfg.Source {
	case "ads1115":
		src, err := NewADS1115Source(cfg.ADCI2CBus, cfg.ADCChannel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open ADS1115 source: %w", err)
		}
		log.Printf("source: ADS1115 on I2C bus %q channel %d", cfg.ADCI2CBus, cfg.ADCChannel)
		return src, func() { src.Close() }, nil
	case "serial":
		src, err := NewSerialSource(cfg.SerialPort, uint(cfg.SerialBaud))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open serial source: %w", err)
		}
		log.Printf("source: serial bridge on %s at %d baud", cfg.SerialPort, cfg.SerialBaud)
		return src, func() { src.Close() }, nil
	case "sim":
		log.Println("source: simulated sensor")
		return NewSimSource(0), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown SOURCE %q", cfg.Source)
	}
}
