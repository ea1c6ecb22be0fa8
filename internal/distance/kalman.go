package distance

import "fmt"

// Default filter tuning for the GP2Y0A41SK0F at the usual ~5 Hz read
// cadence.
const (
	DefaultKalmanQ  = 0.01
	DefaultKalmanR  = 0.1
	DefaultKalmanP0 = 1.0
)

// Kalman is a one-dimensional filter over distance with a random-walk
// process model: the target may drift between cycles (covariance grows
// by Q each predict) and every measurement observes distance directly
// with variance R.
type Kalman struct {
	q  float64 // process noise variance
	r  float64 // measurement noise variance
	p0 float64 // initial error covariance

	estimate   float64
	covariance float64
	seeded     bool
}

// NewKalman returns a filter with process noise q, measurement noise r
// and initial covariance p0. All three must be positive.
func NewKalman(q, r, p0 float64) (*Kalman, error) {
	if q <= 0 || r <= 0 {
		return nil, fmt.Errorf("%w: kalman noise must be positive (q=%g r=%g)", ErrInvalidConfig, q, r)
	}
	if p0 <= 0 {
		return nil, fmt.Errorf("%w: kalman initial covariance must be positive (p0=%g)", ErrInvalidConfig, p0)
	}
	return &Kalman{q: q, r: r, p0: p0, covariance: p0}, nil
}

// Update runs one predict+correct cycle and returns the new estimate.
// The first measurement seeds the estimate directly.
func (k *Kalman) Update(measurement float64) float64 {
	// Predict: random walk, so the estimate stands and only the
	// uncertainty grows.
	k.covariance += k.q

	if !k.seeded {
		k.estimate = measurement
		k.seeded = true
	}

	// Correct. The gain lands in (0,1) as long as q, r and p stay
	// positive, which the constructor and SetParams guarantee.
	gain := k.covariance / (k.covariance + k.r)
	k.estimate += gain * (measurement - k.estimate)
	k.covariance *= 1 - gain
	return k.estimate
}

// SetParams swaps the noise tuning. It takes effect on the next update;
// the current estimate and covariance are preserved. Invalid values are
// rejected and the old tuning stays.
func (k *Kalman) SetParams(q, r float64) error {
	if q <= 0 || r <= 0 {
		return fmt.Errorf("%w: kalman noise must be positive (q=%g r=%g)", ErrInvalidConfig, q, r)
	}
	k.q = q
	k.r = r
	return nil
}

// Params returns the current (q, r) tuning.
func (k *Kalman) Params() (q, r float64) {
	return k.q, k.r
}

// Reset discards the state and restores the initial covariance. The
// next measurement re-seeds the filter.
func (k *Kalman) Reset() {
	k.estimate = 0
	k.covariance = k.p0
	k.seeded = false
}

// Estimate returns the current state estimate.
func (k *Kalman) Estimate() float64 { return k.estimate }

// Covariance returns the current error covariance.
func (k *Kalman) Covariance() float64 { return k.covariance }
