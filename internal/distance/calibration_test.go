package distance

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCalibrationPointsStaySorted(t *testing.T) {
	c := NewCalibration("")
	// Insert out of order; the set must come back sorted by distance.
	addFixturePoints(t, c)

	pts := c.Points()
	if len(pts) != 4 {
		t.Fatalf("Len = %d, want 4", len(pts))
	}
	wantDist := []float64{4, 8, 15, 30}
	wantVolt := []float64{3.1, 1.8, 1.0, 0.3}
	for i := range pts {
		if pts[i].DistanceCM != wantDist[i] || pts[i].Voltage != wantVolt[i] {
			t.Errorf("point %d = %+v, want {%.1f V, %g cm}", i, pts[i], wantVolt[i], wantDist[i])
		}
	}
}

func TestCalibrationAddPointReplacesSameDistance(t *testing.T) {
	c := NewCalibration("")
	addFixturePoints(t, c)

	if err := c.AddPoint(1.05, 15); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("Len = %d after replacement, want 4", c.Len())
	}
	for _, p := range c.Points() {
		if p.DistanceCM == 15 && p.Voltage != 1.05 {
			t.Errorf("point at 15 cm kept voltage %g, want 1.05", p.Voltage)
		}
	}
}

func TestCalibrationAddPointRejectsBadValues(t *testing.T) {
	c := NewCalibration("")
	if err := c.AddPoint(0, 10); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero voltage: %v, want ErrInvalidConfig", err)
	}
	if err := c.AddPoint(1.0, -2); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative distance: %v, want ErrInvalidConfig", err)
	}
	if c.Len() != 0 {
		t.Errorf("rejected points were stored: Len = %d", c.Len())
	}
}

func TestCalibrationDistanceFor(t *testing.T) {
	c := NewCalibration("")
	addFixturePoints(t, c)

	t.Run("exact knot", func(t *testing.T) {
		d, err := c.DistanceFor(1.0)
		if err != nil {
			t.Fatalf("DistanceFor(1.0): %v", err)
		}
		if !almostEqual(d, 15, 1e-9) {
			t.Errorf("DistanceFor(1.0) = %g, want 15", d)
		}
	})

	t.Run("interior stays bracketed", func(t *testing.T) {
		d, err := c.DistanceFor(1.4)
		if err != nil {
			t.Fatalf("DistanceFor(1.4): %v", err)
		}
		if d <= 8 || d >= 15 {
			t.Errorf("DistanceFor(1.4) = %g, want inside (8, 15)", d)
		}
	})

	t.Run("clamp far", func(t *testing.T) {
		d, err := c.DistanceFor(0.1)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("DistanceFor(0.1) err = %v, want ErrOutOfRange", err)
		}
		if d != 30 {
			t.Errorf("DistanceFor(0.1) = %g, want clamp to 30", d)
		}
	})

	t.Run("clamp near", func(t *testing.T) {
		d, err := c.DistanceFor(3.5)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("DistanceFor(3.5) err = %v, want ErrOutOfRange", err)
		}
		if d != 4 {
			t.Errorf("DistanceFor(3.5) = %g, want clamp to 4", d)
		}
	})

	t.Run("span edge is in range", func(t *testing.T) {
		d, err := c.DistanceFor(0.3)
		if err != nil {
			t.Fatalf("DistanceFor(0.3): %v", err)
		}
		if !almostEqual(d, 30, 1e-9) {
			t.Errorf("DistanceFor(0.3) = %g, want 30", d)
		}
	})
}

func TestCalibrationSmallSetsUseLinear(t *testing.T) {
	t.Run("two points", func(t *testing.T) {
		c := NewCalibration("")
		mustAddPoint(t, c, 3.0, 5)
		mustAddPoint(t, c, 1.0, 25)

		d, err := c.DistanceFor(2.0)
		if err != nil {
			t.Fatalf("DistanceFor: %v", err)
		}
		if !almostEqual(d, 15, 1e-9) {
			t.Errorf("DistanceFor(2.0) = %g, want midpoint 15", d)
		}
	})

	t.Run("three points", func(t *testing.T) {
		c := NewCalibration("")
		mustAddPoint(t, c, 3.0, 5)
		mustAddPoint(t, c, 2.0, 10)
		mustAddPoint(t, c, 1.0, 25)

		d, err := c.DistanceFor(1.5)
		if err != nil {
			t.Fatalf("DistanceFor: %v", err)
		}
		if !almostEqual(d, 17.5, 1e-9) {
			t.Errorf("DistanceFor(1.5) = %g, want 17.5", d)
		}
	})
}

func TestCalibrationTooFewPoints(t *testing.T) {
	c := NewCalibration("")
	if _, err := c.DistanceFor(1.0); !errors.Is(err, ErrCalibrationUnavailable) {
		t.Errorf("empty set: %v, want ErrCalibrationUnavailable", err)
	}

	mustAddPoint(t, c, 1.0, 15)
	if _, err := c.DistanceFor(1.0); !errors.Is(err, ErrCalibrationUnavailable) {
		t.Errorf("single point: %v, want ErrCalibrationUnavailable", err)
	}
}

func TestCalibrationRejectsNonMonotonicVoltages(t *testing.T) {
	c := NewCalibration("")
	mustAddPoint(t, c, 1.0, 10)
	mustAddPoint(t, c, 1.0, 20) // same voltage at a different distance

	if _, err := c.DistanceFor(1.0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestCalibrationBuildIsIdempotent(t *testing.T) {
	c := NewCalibration("")
	addFixturePoints(t, c)

	grid := []float64{0.3, 0.45, 0.7, 1.0, 1.3, 1.7, 2.2, 2.8, 3.1}
	first := evalGrid(t, c, grid)

	if err := c.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	second := evalGrid(t, c, grid)

	for i, v := range grid {
		if first[i] != second[i] {
			t.Errorf("rebuild changed DistanceFor(%g): %g vs %g", v, first[i], second[i])
		}
	}
}

func TestCalibrationErrorStats(t *testing.T) {
	t.Run("needs three points", func(t *testing.T) {
		c := NewCalibration("")
		mustAddPoint(t, c, 3.0, 5)
		mustAddPoint(t, c, 1.0, 25)
		if _, err := c.ErrorStats(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("got %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("collinear points fit exactly", func(t *testing.T) {
		// d = 40 - 10 v, so leaving the middle point out and refitting
		// the straight line through its neighbors predicts it exactly.
		c := NewCalibration("")
		mustAddPoint(t, c, 1.0, 30)
		mustAddPoint(t, c, 2.0, 20)
		mustAddPoint(t, c, 3.0, 10)

		st, err := c.ErrorStats()
		if err != nil {
			t.Fatalf("ErrorStats: %v", err)
		}
		if !almostEqual(st.MeanAbsError, 0, 1e-9) || !almostEqual(st.StdDev, 0, 1e-9) {
			t.Errorf("stats = %+v, want zero error for collinear points", st)
		}
	})

	t.Run("fixture set", func(t *testing.T) {
		c := NewCalibration("")
		addFixturePoints(t, c)

		st, err := c.ErrorStats()
		if err != nil {
			t.Fatalf("ErrorStats: %v", err)
		}
		if st.MeanAbsError < 0 || st.StdDev < 0 {
			t.Errorf("stats = %+v, want non-negative values", st)
		}
	})
}

func TestCalibrationSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")

	c := NewCalibration("GP2Y0A41SK0F")
	addFixturePoints(t, c)
	if _, err := c.ErrorStats(); err != nil {
		t.Fatalf("ErrorStats: %v", err)
	}
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewCalibration("")
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.SensorModel() != "GP2Y0A41SK0F" {
		t.Errorf("sensor model %q, want GP2Y0A41SK0F", loaded.SensorModel())
	}

	orig, back := c.Points(), loaded.Points()
	if len(orig) != len(back) {
		t.Fatalf("point count %d after round trip, want %d", len(back), len(orig))
	}
	for i := range orig {
		if orig[i] != back[i] {
			t.Errorf("point %d changed across round trip: %+v vs %+v", i, orig[i], back[i])
		}
	}

	grid := []float64{0.35, 0.6, 1.0, 1.55, 2.4, 3.0}
	before := evalGrid(t, c, grid)
	after := evalGrid(t, loaded, grid)
	for i, v := range grid {
		if before[i] != after[i] {
			t.Errorf("DistanceFor(%g) differs after round trip: %g vs %g", v, before[i], after[i])
		}
	}

	origStats, ok := c.FitStats()
	if !ok {
		t.Fatal("original lost its fit stats")
	}
	loadedStats, ok := loaded.FitStats()
	if !ok {
		t.Fatal("fit stats not restored from file")
	}
	if origStats != loadedStats {
		t.Errorf("fit stats %+v after round trip, want %+v", loadedStats, origStats)
	}
}

func TestCalibrationSaveFileShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")

	c := NewCalibration("")
	addFixturePoints(t, c)
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	for _, key := range []string{"schema_version", "sensor_model", "points", "last_updated", "fit_error_stats"} {
		if _, ok := m[key]; !ok {
			t.Errorf("saved file missing %q", key)
		}
	}

	// The temp file must be gone after the rename.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestCalibrationSaveNeedsPoints(t *testing.T) {
	c := NewCalibration("")
	mustAddPoint(t, c, 1.0, 15)
	err := c.Save(filepath.Join(t.TempDir(), "calibration.json"))
	if !errors.Is(err, ErrCalibrationUnavailable) {
		t.Errorf("got %v, want ErrCalibrationUnavailable", err)
	}
}

func TestCalibrationLoadFailures(t *testing.T) {
	dir := t.TempDir()

	write := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		return path
	}

	cases := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(dir, "nope.json") }},
		{"corrupt json", func(t *testing.T) string { return write(t, "corrupt.json", "{ not json") }},
		{"unknown schema", func(t *testing.T) string {
			return write(t, "schema.json", `{"schema_version": 99, "sensor_model": "X", "points": [{"voltage": 1, "distance_cm": 10}, {"voltage": 2, "distance_cm": 5}], "last_updated": ""}`)
		}},
		{"too few points", func(t *testing.T) string {
			return write(t, "few.json", `{"schema_version": 1, "sensor_model": "X", "points": [{"voltage": 1, "distance_cm": 10}], "last_updated": ""}`)
		}},
		{"unusable point", func(t *testing.T) string {
			return write(t, "bad_point.json", `{"schema_version": 1, "sensor_model": "X", "points": [{"voltage": -1, "distance_cm": 10}, {"voltage": 2, "distance_cm": 5}], "last_updated": ""}`)
		}},
		{"duplicate voltage", func(t *testing.T) string {
			return write(t, "dup.json", `{"schema_version": 1, "sensor_model": "X", "points": [{"voltage": 1, "distance_cm": 10}, {"voltage": 1, "distance_cm": 5}], "last_updated": ""}`)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCalibration("")
			addFixturePoints(t, c)
			before := c.Points()

			if err := c.Load(tc.path(t)); !errors.Is(err, ErrCalibrationUnavailable) {
				t.Fatalf("got %v, want ErrCalibrationUnavailable", err)
			}

			after := c.Points()
			if len(before) != len(after) {
				t.Fatalf("failed load changed the point set: %d points, want %d", len(after), len(before))
			}
			for i := range before {
				if before[i] != after[i] {
					t.Errorf("failed load changed point %d: %+v vs %+v", i, after[i], before[i])
				}
			}
		})
	}
}

func TestCalibrationRemoveAndClear(t *testing.T) {
	c := NewCalibration("")
	addFixturePoints(t, c)

	if !c.RemovePoint(15) {
		t.Error("RemovePoint(15) found nothing")
	}
	if c.RemovePoint(99) {
		t.Error("RemovePoint(99) claims to have removed a point")
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d after removal, want 3", c.Len())
	}

	c.Clear()
	if c.Len() != 0 || c.Calibrated() {
		t.Errorf("Clear left %d points, calibrated=%v", c.Len(), c.Calibrated())
	}
}

func TestTheoreticalCurve(t *testing.T) {
	if d := TheoreticalDistance(0.25); d != MaxDistanceCM {
		t.Errorf("TheoreticalDistance(0.25) = %g, want rail clamp to %g", d, MaxDistanceCM)
	}
	if d := TheoreticalDistance(3.3); d != MinDistanceCM {
		t.Errorf("TheoreticalDistance(3.3) = %g, want rail clamp to %g", d, MinDistanceCM)
	}
	if d := TheoreticalDistance(1.0); !almostEqual(d, 12.08, 0.01) {
		t.Errorf("TheoreticalDistance(1.0) = %g, want ~12.08", d)
	}

	for _, cm := range []float64{5, 10, 20, 28} {
		back := TheoreticalDistance(TheoreticalVoltage(cm))
		if !almostEqual(back, cm, 1e-9) {
			t.Errorf("inversion of %g cm came back as %g", cm, back)
		}
	}

	if TheoreticalInRange(0.2) || TheoreticalInRange(3.4) {
		t.Error("saturated voltages reported as in range")
	}
	if !TheoreticalInRange(1.5) {
		t.Error("1.5 V reported as out of range")
	}
}

// ---------- test helpers ----------

// addFixturePoints loads the reference set used across these tests,
// deliberately out of order.
func addFixturePoints(t *testing.T, c *Calibration) {
	t.Helper()
	mustAddPoint(t, c, 1.0, 15)
	mustAddPoint(t, c, 3.1, 4)
	mustAddPoint(t, c, 0.3, 30)
	mustAddPoint(t, c, 1.8, 8)
}

func mustAddPoint(t *testing.T, c *Calibration, voltage, distanceCM float64) {
	t.Helper()
	if err := c.AddPoint(voltage, distanceCM); err != nil {
		t.Fatalf("AddPoint(%g, %g): %v", voltage, distanceCM, err)
	}
}

func evalGrid(t *testing.T, c *Calibration, grid []float64) []float64 {
	t.Helper()
	out := make([]float64, len(grid))
	for i, v := range grid {
		d, err := c.DistanceFor(v)
		if err != nil {
			t.Fatalf("DistanceFor(%g): %v", v, err)
		}
		out[i] = d
	}
	return out
}
