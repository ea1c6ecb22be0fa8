package distance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindowSize is the capacity of the smoothing and statistics
// buffers.
const DefaultWindowSize = 10

// Window is a fixed-capacity circular buffer over recent measurements.
// Once full, every push evicts the oldest entry.
type Window struct {
	vals  []float64
	head  int // next write position
	count int
}

// NewWindow returns a window holding up to size values.
func NewWindow(size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: window size must be >= 1, got %d", ErrInvalidConfig, size)
	}
	return &Window{vals: make([]float64, size)}, nil
}

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	w.vals[w.head] = v
	w.head = (w.head + 1) % len(w.vals)
	if w.count < len(w.vals) {
		w.count++
	}
}

// Len returns the number of stored values.
func (w *Window) Len() int { return w.count }

// Reset drops the contents.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
}

// ordered returns the contents oldest first.
func (w *Window) ordered() []float64 {
	out := make([]float64, 0, w.count)
	if w.count < len(w.vals) {
		return append(out, w.vals[:w.count]...)
	}
	out = append(out, w.vals[w.head:]...)
	return append(out, w.vals[:w.head]...)
}

// WeightedMean returns the recency-weighted mean. Weights rise
// exponentially from exp(-1) at the oldest entry to exp(0) at the
// newest, then normalize, so the freshest reading counts close to three
// times the stalest one.
func (w *Window) WeightedMean() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	vals := w.ordered()
	if len(vals) == 1 {
		return vals[0], nil
	}
	weights := make([]float64, len(vals))
	span := float64(len(vals) - 1)
	for i := range weights {
		weights[i] = math.Exp(float64(i)/span - 1)
	}
	return stat.Mean(vals, weights), nil
}

// Mean returns the plain mean of the contents.
func (w *Window) Mean() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	return stat.Mean(w.ordered(), nil), nil
}

// StdDev returns the population standard deviation of the contents. A
// single entry reports zero spread.
func (w *Window) StdDev() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	if w.count == 1 {
		return 0, nil
	}
	return stat.PopStdDev(w.ordered(), nil), nil
}

// Min returns the smallest stored value.
func (w *Window) Min() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	return floats.Min(w.ordered()), nil
}

// Max returns the largest stored value.
func (w *Window) Max() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	return floats.Max(w.ordered()), nil
}

// Last returns the most recent value.
func (w *Window) Last() (float64, error) {
	if w.count == 0 {
		return 0, ErrNoData
	}
	return w.vals[(w.head-1+len(w.vals))%len(w.vals)], nil
}

// Trend returns the least-squares slope of the contents in units per
// push, a cheap drift indicator.
func (w *Window) Trend() (float64, error) {
	if w.count < 2 {
		return 0, ErrNoData
	}
	vals := w.ordered()
	xs := make([]float64, len(vals))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, vals, nil, false)
	return slope, nil
}
