package acquire

import (
	"math"
	"testing"

	"github.com/ThiagoMGLima/voxel3D/internal/distance"
)

func TestSimSourceDeterministicUnderSeed(t *testing.T) {
	a := NewSimSource(42)
	b := NewSimSource(42)

	for i := 0; i < 200; i++ {
		va, err := a.ReadVoltage()
		if err != nil {
			t.Fatalf("ReadVoltage: %v", err)
		}
		vb, err := b.ReadVoltage()
		if err != nil {
			t.Fatalf("ReadVoltage: %v", err)
		}
		if va != vb {
			t.Fatalf("sample %d diverged: %g vs %g", i, va, vb)
		}
	}
}

func TestSimSourceStaysPlausible(t *testing.T) {
	s := NewSimSource(7)

	// The sweep spans a full period; every sample must stay near the
	// voltages the datasheet curve produces for the sweep range.
	lo := distance.TheoreticalVoltage(simFarCM) - 5*simNoiseV
	hi := distance.TheoreticalVoltage(simNearCM) + 5*simNoiseV
	for i := 0; i < int(simPeriodS/simStepS); i++ {
		v, err := s.ReadVoltage()
		if err != nil {
			t.Fatalf("ReadVoltage: %v", err)
		}
		if v < lo || v > hi {
			t.Fatalf("sample %d = %g V outside plausible band [%g, %g]", i, v, lo, hi)
		}
		if math.IsNaN(v) {
			t.Fatalf("sample %d is NaN", i)
		}
	}
}

func TestSimSourceFeedsPipeline(t *testing.T) {
	p, err := distance.NewPipeline(NewSimSource(3), distance.Options{})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	for i := 0; i < 20; i++ {
		r, err := p.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if r.DistanceCM < distance.MinDistanceCM || r.DistanceCM > distance.MaxDistanceCM {
			t.Fatalf("read %d: %g cm outside sensor range", i, r.DistanceCM)
		}
	}
}
