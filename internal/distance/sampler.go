package distance

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SampleFunc yields one raw voltage per invocation.
type SampleFunc func() (float64, error)

// madScale maps a median absolute deviation onto the standard deviation
// of normally distributed noise.
const madScale = 1.4826

// DefaultMADThreshold keeps samples within two (scaled) deviations of
// the burst median.
const DefaultMADThreshold = 2.0

// Sampler collects bursts of raw voltages and strips statistical
// outliers before averaging. Rejection is centered on the median with a
// MAD-based spread estimate, so a single spike cannot drag the fence
// the way a mean/sigma fence would let it.
type Sampler struct {
	// MADThreshold is the rejection distance in scaled-MAD units.
	// Non-positive values fall back to DefaultMADThreshold.
	MADThreshold float64
}

// NewSampler returns a sampler with the default rejection threshold.
func NewSampler() *Sampler {
	return &Sampler{MADThreshold: DefaultMADThreshold}
}

// Sample invokes read exactly count times and returns the mean of the
// readings that survive outlier rejection. A degenerate burst where the
// spread collapses to zero falls back to the plain mean. The first read
// error aborts the burst.
func (s *Sampler) Sample(read SampleFunc, count int) (float64, error) {
	if count < 1 {
		return 0, fmt.Errorf("%w: sample count must be >= 1, got %d", ErrInvalidConfig, count)
	}

	raw := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v, err := read()
		if err != nil {
			return 0, fmt.Errorf("%w: sample %d/%d: %v", ErrAcquisition, i+1, count, err)
		}
		raw = append(raw, v)
	}
	if count == 1 {
		return raw[0], nil
	}

	sorted := append([]float64(nil), raw...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	devs := make([]float64, len(raw))
	for i, v := range raw {
		devs[i] = math.Abs(v - median)
	}
	sortedDevs := append([]float64(nil), devs...)
	sort.Float64s(sortedDevs)
	mad := stat.Quantile(0.5, stat.Empirical, sortedDevs, nil)
	if mad == 0 {
		// Degenerate spread: any fence would reject all but the
		// repeated value, so keep the plain mean.
		return stat.Mean(raw, nil), nil
	}

	threshold := s.MADThreshold
	if threshold <= 0 {
		threshold = DefaultMADThreshold
	}
	fence := threshold * madScale * mad

	var sum float64
	var kept int
	for i, v := range raw {
		if devs[i] <= fence {
			sum += v
			kept++
		}
	}
	if kept == 0 {
		return stat.Mean(raw, nil), nil
	}
	return sum / float64(kept), nil
}
