// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package acquire

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

// Sweep shape of the simulated target.
const (
	simNearCM  = 6.0
	simFarCM   = 28.0
	simPeriodS = 20.0
	simStepS   = 0.01 // simulated time per sample
	simNoiseV  = 0.015
)

// SimSource synthesizes the sensor without hardware: a target sweeps
// smoothly between simNearCM and simFarCM and the matching voltage is
// derived from the datasheet curve, plus Gaussian noise. Time advances
// per sample, so a fixed seed replays the exact same voltage series.
type SimSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	step int
}

// NewSimSource returns a simulated sensor. Seed 0 derives one from the
// clock.
func NewSimSource(seed int64) *SimSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimSource{rng: rand.New(rand.NewSource(seed))}
}

// ReadVoltage returns the next simulated sample.
func (s *SimSource) ReadVoltage() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := float64(s.step) * simStepS
	s.step++

	phase := math.Sin(2 * math.Pi * t / simPeriodS)
	cm := (simNearCM+simFarCM)/2 + phase*(simFarCM-simNearCM)/2

	v := distance.TheoreticalVoltage(cm) + s.rng.NormFloat64()*simNoiseV
	if v < 0.01 {
		v = 0.01
	}
	return v, nil
}
