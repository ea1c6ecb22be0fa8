package distance

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Usable range of the GP2Y0A41SK0F.
const (
	MinDistanceCM = 4.0
	MaxDistanceCM = 30.0
)

// Datasheet power-law fit used when no calibration is available:
// d = a/(v-b) - c. Outside the rails the sensor output saturates and
// carries no distance information.
const (
	theoreticalA = 12.0
	theoreticalB = 0.04
	theoreticalC = 0.42

	lowVoltageRail  = 0.25 // at or below: target beyond 30 cm
	highVoltageRail = 3.3  // at or above: target closer than 4 cm
)

// TheoreticalDistance converts a voltage with the datasheet fit,
// clamped to the sensor's usable range.
func TheoreticalDistance(v float64) float64 {
	if v <= lowVoltageRail {
		return MaxDistanceCM
	}
	if v >= highVoltageRail {
		return MinDistanceCM
	}
	d := theoreticalA/(v-theoreticalB) - theoreticalC
	if d > MaxDistanceCM {
		return MaxDistanceCM
	}
	if d < MinDistanceCM {
		return MinDistanceCM
	}
	return d
}

// TheoreticalVoltage inverts the datasheet fit. Simulators and tests
// use it to synthesize plausible sensor output.
func TheoreticalVoltage(cm float64) float64 {
	if cm < MinDistanceCM {
		cm = MinDistanceCM
	}
	if cm > MaxDistanceCM {
		cm = MaxDistanceCM
	}
	return theoreticalA/(cm+theoreticalC) + theoreticalB
}

// TheoreticalInRange reports whether v sits strictly between the
// saturation rails.
func TheoreticalInRange(v float64) bool {
	return v > lowVoltageRail && v < highVoltageRail
}

// fitCurve builds the voltage-to-distance interpolant for points sorted
// by distance ascending. The sensor response falls monotonically with
// distance, so the voltages must decrease strictly along the slice.
// Four or more knots get a natural cubic spline; two or three degrade
// to piecewise linear.
func fitCurve(points []Point) (interp.Predictor, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 calibration points, have %d", ErrCalibrationUnavailable, len(points))
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i := range points {
		p := points[len(points)-1-i] // voltage ascending
		xs[i] = p.Voltage
		ys[i] = p.DistanceCM
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("%w: calibration voltages must fall strictly with distance (%.3f V repeats or rises)", ErrInvalidConfig, xs[i])
		}
	}

	var fp interp.FittablePredictor
	if len(points) >= 4 {
		fp = &interp.NaturalCubic{}
	} else {
		fp = &interp.PiecewiseLinear{}
	}
	if err := fp.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("curve fit: %w", err)
	}
	return fp, nil
}
