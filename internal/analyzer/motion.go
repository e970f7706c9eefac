package analyzer

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// motionEstimator implements MotionEstimator on top of the dense flow solver
type motionEstimator struct {
	flow *farnebackEstimator
}

// NewMotionEstimator builds a flow estimator with the given parameters.
// pool may be nil, in which case kernels run on the calling goroutine.
func NewMotionEstimator(params FarnebackParams, pool *WorkerPool) (MotionEstimator, error) {
	fe, err := newFarnebackEstimator(params, pool)
	if err != nil {
		return nil, err
	}
	return &motionEstimator{flow: fe}, nil
}

// DenseFlow returns the per-pixel displacement from prev to cur
func (me *motionEstimator) DenseFlow(prev, cur *image.Gray) (*FlowField, error) {
	return me.flow.Flow(prev, cur)
}

// FlowIntensity reduces the dense flow between two frames to a score in [0, 100]
func (me *motionEstimator) FlowIntensity(prev, cur *image.Gray) (float64, error) {
	field, err := me.flow.Flow(prev, cur)
	if err != nil {
		return 0, err
	}
	return FlowIntensity(field), nil
}

// FlowIntensity scores a displacement field. Magnitudes under half the mean are
// zeroed as noise, then mean*stddev*gain of what remains is clamped to [0, 100].
// A field that moves uniformly scores 0.
func FlowIntensity(field *FlowField) float64 {
	if field == nil || len(field.DX) == 0 {
		return 0
	}

	mags := make([]float64, len(field.DX))
	for i := range mags {
		mags[i] = math.Hypot(field.DX[i], field.DY[i])
	}

	threshold := stat.Mean(mags, nil) * NoiseSuppressionRatio
	for i, m := range mags {
		if m < threshold {
			mags[i] = 0
		}
	}

	mean, std := stat.PopMeanStdDev(mags, nil)
	return clampScore(mean*std*FlowIntensityGain, 0, MaxFlowIntensity)
}

// clampScore maps non-finite values to lo and clamps the rest into [lo, hi]
func clampScore(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
