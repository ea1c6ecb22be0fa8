package distance

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// DefaultSensorModel identifies the sensor the theoretical fallback was
// fitted for.
const DefaultSensorModel = "GP2Y0A41SK0F"

// calibrationSchemaVersion guards the on-disk format.
const calibrationSchemaVersion = 1

// Point is one calibration reference: the voltage observed with the
// target at a known distance.
type Point struct {
	Voltage    float64 `json:"voltage"`
	DistanceCM float64 `json:"distance_cm"`
}

// ErrorStats grades a calibration via leave-one-out evaluation.
type ErrorStats struct {
	MeanAbsError float64 `json:"mean_abs_error"`
	StdDev       float64 `json:"stddev"`
}

// calibrationFile is the persisted JSON schema.
type calibrationFile struct {
	SchemaVersion int         `json:"schema_version"`
	SensorModel   string      `json:"sensor_model"`
	Points        []Point     `json:"points"`
	LastUpdated   string      `json:"last_updated"`
	FitErrorStats *ErrorStats `json:"fit_error_stats,omitempty"`
}

// Calibration maintains the reference points and the fitted
// voltage-to-distance curve. The curve is built lazily on first lookup
// and cached until the point set changes.
type Calibration struct {
	sensorModel string
	points      []Point // sorted by distance ascending

	curve    interp.Predictor // nil until built
	fitStats *ErrorStats      // nil until computed
}

// NewCalibration returns an empty calibration for the given sensor
// model. An empty model selects DefaultSensorModel.
func NewCalibration(model string) *Calibration {
	if model == "" {
		model = DefaultSensorModel
	}
	return &Calibration{sensorModel: model}
}

// SensorModel returns the sensor the points were captured for.
func (c *Calibration) SensorModel() string { return c.sensorModel }

// Len returns the number of reference points.
func (c *Calibration) Len() int { return len(c.points) }

// Calibrated reports whether enough points exist to build a curve.
func (c *Calibration) Calibrated() bool { return len(c.points) >= 2 }

// Points returns a copy of the reference points, nearest first.
func (c *Calibration) Points() []Point {
	return append([]Point(nil), c.points...)
}

// FitStats returns the most recently computed error stats, if any.
func (c *Calibration) FitStats() (ErrorStats, bool) {
	if c.fitStats == nil {
		return ErrorStats{}, false
	}
	return *c.fitStats, true
}

// AddPoint records the voltage observed at a known distance. A point at
// an already-calibrated distance replaces the previous one; otherwise
// the set stays sorted by distance. The cached curve is invalidated.
func (c *Calibration) AddPoint(voltage, distanceCM float64) error {
	if voltage <= 0 {
		return fmt.Errorf("%w: voltage must be positive, got %g", ErrInvalidConfig, voltage)
	}
	if distanceCM <= 0 {
		return fmt.Errorf("%w: distance must be positive, got %g", ErrInvalidConfig, distanceCM)
	}

	replaced := false
	for i := range c.points {
		if c.points[i].DistanceCM == distanceCM {
			c.points[i].Voltage = voltage
			replaced = true
			break
		}
	}
	if !replaced {
		c.points = append(c.points, Point{Voltage: voltage, DistanceCM: distanceCM})
		sort.Slice(c.points, func(i, j int) bool {
			return c.points[i].DistanceCM < c.points[j].DistanceCM
		})
	}

	c.invalidate()
	return nil
}

// RemovePoint drops the reference at the given distance and reports
// whether one was found.
func (c *Calibration) RemovePoint(distanceCM float64) bool {
	for i := range c.points {
		if c.points[i].DistanceCM == distanceCM {
			c.points = append(c.points[:i], c.points[i+1:]...)
			c.invalidate()
			return true
		}
	}
	return false
}

// Clear drops all reference points.
func (c *Calibration) Clear() {
	c.points = nil
	c.invalidate()
}

func (c *Calibration) invalidate() {
	c.curve = nil
	c.fitStats = nil
}

// Build fits the curve eagerly. Most callers rely on the lazy build
// inside DistanceFor; the calibration wizard calls this to validate a
// fresh point set before saving it.
func (c *Calibration) Build() error {
	return c.ensureCurve()
}

func (c *Calibration) ensureCurve() error {
	if c.curve != nil {
		return nil
	}
	curve, err := fitCurve(c.points)
	if err != nil {
		return err
	}
	c.curve = curve
	return nil
}

// DistanceFor evaluates the calibrated curve at the given voltage.
// Voltages outside the calibrated span clamp to the nearest reference
// distance; the clamped value comes back together with ErrOutOfRange so
// callers can flag the reading while still using it.
func (c *Calibration) DistanceFor(voltage float64) (float64, error) {
	if err := c.ensureCurve(); err != nil {
		return 0, err
	}

	// points[0] is the nearest reference (highest voltage), the last
	// one the farthest (lowest voltage).
	near := c.points[0]
	far := c.points[len(c.points)-1]
	if voltage < far.Voltage {
		return far.DistanceCM, fmt.Errorf("%w: %.3f V under calibrated span, clamped to %g cm", ErrOutOfRange, voltage, far.DistanceCM)
	}
	if voltage > near.Voltage {
		return near.DistanceCM, fmt.Errorf("%w: %.3f V over calibrated span, clamped to %g cm", ErrOutOfRange, voltage, near.DistanceCM)
	}
	return c.curve.Predict(voltage), nil
}

// ErrorStats measures fit quality by refitting without each interior
// point and predicting the point it was deprived of. The two endpoints
// are skipped: beyond the span the curve clamps, so their residuals
// would grade the clamp, not the fit. Needs at least 3 points.
func (c *Calibration) ErrorStats() (ErrorStats, error) {
	if len(c.points) < 3 {
		return ErrorStats{}, fmt.Errorf("%w: need at least 3 points for error stats, have %d", ErrInvalidConfig, len(c.points))
	}

	abs := make([]float64, 0, len(c.points)-2)
	for i := 1; i < len(c.points)-1; i++ {
		rest := make([]Point, 0, len(c.points)-1)
		rest = append(rest, c.points[:i]...)
		rest = append(rest, c.points[i+1:]...)
		curve, err := fitCurve(rest)
		if err != nil {
			return ErrorStats{}, err
		}
		p := c.points[i]
		abs = append(abs, math.Abs(curve.Predict(p.Voltage)-p.DistanceCM))
	}

	st := ErrorStats{
		MeanAbsError: stat.Mean(abs, nil),
		StdDev:       stat.PopStdDev(abs, nil),
	}
	c.fitStats = &st
	return st, nil
}

// Save writes the calibration as indented JSON through a temp file and
// rename, so an interrupted write cannot corrupt an existing file.
func (c *Calibration) Save(path string) error {
	if len(c.points) < 2 {
		return fmt.Errorf("%w: need at least 2 points to save, have %d", ErrCalibrationUnavailable, len(c.points))
	}

	file := calibrationFile{
		SchemaVersion: calibrationSchemaVersion,
		SensorModel:   c.sensorModel,
		Points:        c.points,
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		FitErrorStats: c.fitStats,
	}
	if file.FitErrorStats == nil && len(c.points) >= 3 {
		if st, err := c.ErrorStats(); err == nil {
			file.FitErrorStats = &st
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create calibration temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close calibration temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace calibration file: %w", err)
	}
	return nil
}

// Load replaces the calibration from a saved file. Every failure mode
// (missing file, bad JSON, unknown schema, too few or unusable points)
// reports ErrCalibrationUnavailable and leaves the current state
// untouched, so the caller keeps whatever it had.
func (c *Calibration) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCalibrationUnavailable, err)
	}

	var file calibrationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrCalibrationUnavailable, path, err)
	}
	if file.SchemaVersion != calibrationSchemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d in %s", ErrCalibrationUnavailable, file.SchemaVersion, path)
	}
	if len(file.Points) < 2 {
		return fmt.Errorf("%w: %s holds %d points, need at least 2", ErrCalibrationUnavailable, path, len(file.Points))
	}
	for _, p := range file.Points {
		if p.Voltage <= 0 || p.DistanceCM <= 0 {
			return fmt.Errorf("%w: %s contains unusable point (%.3f V, %g cm)", ErrCalibrationUnavailable, path, p.Voltage, p.DistanceCM)
		}
	}

	points := append([]Point(nil), file.Points...)
	sort.Slice(points, func(i, j int) bool { return points[i].DistanceCM < points[j].DistanceCM })
	if _, err := fitCurve(points); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCalibrationUnavailable, path, err)
	}

	if file.SensorModel != "" {
		c.sensorModel = file.SensorModel
	}
	c.points = points
	c.invalidate()
	c.fitStats = file.FitErrorStats
	return nil
}
