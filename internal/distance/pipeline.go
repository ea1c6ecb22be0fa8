package distance

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Source is the acquirer contract: one raw voltage per call.
type Source interface {
	ReadVoltage() (float64, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func() (float64, error)

// ReadVoltage calls f.
func (f SourceFunc) ReadVoltage() (float64, error) { return f() }

// State names the stage a pipeline cycle is in.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateConverting
	StateSmoothing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateConverting:
		return "converting"
	case StateSmoothing:
		return "smoothing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultSamplesPerRead is the burst length of a normal read.
const DefaultSamplesPerRead = 10

// CalibrationSampleCount is the longer burst used when capturing a
// calibration reference point.
const CalibrationSampleCount = 50

// Options tunes a Pipeline. Zero fields take the package defaults.
type Options struct {
	SensorModel    string
	SamplesPerRead int
	WindowSize     int
	KalmanQ        float64
	KalmanR        float64
	KalmanP0       float64
	MADThreshold   float64
}

// Pipeline owns the full voltage-to-distance chain: burst sampling with
// outlier rejection, calibration lookup, Kalman smoothing and the
// statistics windows. A single mutex serializes everything; cycles are
// inherently sequential because each one feeds the previous estimate
// forward.
type Pipeline struct {
	mu sync.Mutex

	src     Source
	sampler *Sampler
	filter  *Kalman
	cal     *Calibration

	distances *Window
	voltages  *Window

	samplesPerRead int
	state          State

	readings int
	started  time.Time
}

// NewPipeline wires a pipeline to the given voltage source.
func NewPipeline(src Source, opts Options) (*Pipeline, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil voltage source", ErrInvalidConfig)
	}

	samples := opts.SamplesPerRead
	if samples == 0 {
		samples = DefaultSamplesPerRead
	}
	if samples < 1 {
		return nil, fmt.Errorf("%w: samples per read must be >= 1, got %d", ErrInvalidConfig, samples)
	}

	size := opts.WindowSize
	if size == 0 {
		size = DefaultWindowSize
	}
	distances, err := NewWindow(size)
	if err != nil {
		return nil, err
	}
	voltages, err := NewWindow(size)
	if err != nil {
		return nil, err
	}

	q, r, p0 := opts.KalmanQ, opts.KalmanR, opts.KalmanP0
	if q == 0 {
		q = DefaultKalmanQ
	}
	if r == 0 {
		r = DefaultKalmanR
	}
	if p0 == 0 {
		p0 = DefaultKalmanP0
	}
	filter, err := NewKalman(q, r, p0)
	if err != nil {
		return nil, err
	}

	sampler := NewSampler()
	if opts.MADThreshold != 0 {
		if opts.MADThreshold < 0 {
			return nil, fmt.Errorf("%w: MAD threshold must be positive, got %g", ErrInvalidConfig, opts.MADThreshold)
		}
		sampler.MADThreshold = opts.MADThreshold
	}

	return &Pipeline{
		src:            src,
		sampler:        sampler,
		filter:         filter,
		cal:            NewCalibration(opts.SensorModel),
		distances:      distances,
		voltages:       voltages,
		samplesPerRead: samples,
		started:        time.Now(),
	}, nil
}

// Read runs one full cycle: sample, convert, smooth. A failure at any
// stage surfaces that stage's error with the filter and windows left
// exactly as they were.
func (p *Pipeline) Read() (Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateSampling
	voltage, err := p.sampler.Sample(p.src.ReadVoltage, p.samplesPerRead)
	if err != nil {
		p.state = StateIdle
		return Reading{}, err
	}

	p.state = StateConverting
	raw, inRange, err := p.convert(voltage)
	if err != nil {
		p.state = StateIdle
		return Reading{}, err
	}

	p.state = StateSmoothing
	filtered := p.filter.Update(raw)
	p.distances.Push(filtered)
	p.voltages.Push(voltage)
	p.readings++

	p.state = StateReady
	stddev, _ := p.distances.StdDev()
	vstd, _ := p.voltages.StdDev()
	reading := Reading{
		DistanceCM:    filtered,
		RawDistanceCM: raw,
		StdDevCM:      stddev,
		Voltage:       voltage,
		VoltageStdDev: vstd,
		InRange:       inRange,
		TimestampMS:   time.Now().UnixMilli(),
	}

	p.state = StateIdle
	return reading, nil
}

// convert maps a voltage to centimeters, preferring the calibrated
// curve and falling back to the theoretical one when no usable
// calibration exists.
func (p *Pipeline) convert(voltage float64) (cm float64, inRange bool, err error) {
	cm, err = p.cal.DistanceFor(voltage)
	switch {
	case err == nil:
		return cm, true, nil
	case errors.Is(err, ErrOutOfRange):
		return cm, false, nil
	case errors.Is(err, ErrCalibrationUnavailable):
		return TheoreticalDistance(voltage), TheoreticalInRange(voltage), nil
	default:
		return 0, false, err
	}
}

// CalibrateAddPoint captures a reference point for a target placed at a
// known distance, using a longer burst than a normal read. On failure
// the point set is left unchanged. Returns the captured voltage.
func (p *Pipeline) CalibrateAddPoint(distanceCM float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if distanceCM <= 0 {
		return 0, fmt.Errorf("%w: distance must be positive, got %g", ErrInvalidConfig, distanceCM)
	}

	p.state = StateSampling
	voltage, err := p.sampler.Sample(p.src.ReadVoltage, CalibrationSampleCount)
	p.state = StateIdle
	if err != nil {
		return 0, err
	}

	if err := p.cal.AddPoint(voltage, distanceCM); err != nil {
		return 0, err
	}
	return voltage, nil
}

// SetKalmanParams retunes the filter. Invalid values are rejected and
// the previous tuning stays.
func (p *Pipeline) SetKalmanParams(q, r float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter.SetParams(q, r)
}

// KalmanParams returns the current filter tuning.
func (p *Pipeline) KalmanParams() (q, r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter.Params()
}

// SaveCalibration persists the current point set.
func (p *Pipeline) SaveCalibration(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cal.Save(path)
}

// LoadCalibration replaces the point set from disk. When it reports
// ErrCalibrationUnavailable the pipeline keeps converting through the
// theoretical curve.
func (p *Pipeline) LoadCalibration(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cal.Load(path)
}

// CalibrationPoints returns a copy of the current reference points.
func (p *Pipeline) CalibrationPoints() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cal.Points()
}

// CalibrationErrorStats grades the current point set.
func (p *Pipeline) CalibrationErrorStats() (ErrorStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cal.ErrorStats()
}

// ClearCalibration drops all reference points, reverting conversion to
// the theoretical curve.
func (p *Pipeline) ClearCalibration() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cal.Clear()
}

// SensorModel returns the configured sensor model.
func (p *Pipeline) SensorModel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cal.SensorModel()
}

// State returns the stage of the cycle in flight, or idle.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset clears the filter and the windows. Calibration is kept.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.Reset()
	p.distances.Reset()
	p.voltages.Reset()
	p.readings = 0
	p.started = time.Now()
}

// Stats assembles the aggregate diagnostics block.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{
		Readings:          p.readings,
		ElapsedS:          time.Since(p.started).Seconds(),
		State:             p.state.String(),
		KalmanEstimate:    p.filter.Estimate(),
		KalmanCovariance:  p.filter.Covariance(),
		CalibrationPoints: p.cal.Len(),
		Calibrated:        p.cal.Calibrated(),
	}
	if st.ElapsedS > 0 {
		st.RateHz = float64(p.readings) / st.ElapsedS
	}
	if v, err := p.distances.Last(); err == nil {
		st.DistanceCM = v
	}
	if v, err := p.distances.WeightedMean(); err == nil {
		st.DistanceWeightedCM = v
	}
	if v, err := p.distances.Mean(); err == nil {
		st.DistanceMeanCM = v
	}
	if v, err := p.distances.StdDev(); err == nil {
		st.DistanceStdCM = v
	}
	if v, err := p.distances.Min(); err == nil {
		st.DistanceMinCM = v
	}
	if v, err := p.distances.Max(); err == nil {
		st.DistanceMaxCM = v
	}
	if v, err := p.distances.Trend(); err == nil {
		st.TrendCMPerRead = v
	}
	if v, err := p.voltages.Mean(); err == nil {
		st.VoltageMean = v
	}
	if v, err := p.voltages.StdDev(); err == nil {
		st.VoltageStd = v
	}
	return st
}
