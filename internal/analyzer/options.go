package analyzer

import (
	"fmt"
)

// Policy constants for turning frames into readings.
const (
	// Magnitudes below this fraction of the mean magnitude are treated as noise.
	NoiseSuppressionRatio = 0.5
	// FlowIntensityGain scales mean*stddev of the filtered magnitudes.
	FlowIntensityGain = 5.0
	MaxFlowIntensity  = 100.0

	// TemperatureScale maps mean brightness in [0, 255] to degrees in [0, 50].
	TemperatureScale = 50.0

	NeutralPH          = 7.0
	EdgePHWeight       = 3.0
	SaturationPHWeight = 3.0
	MinPH              = 0.0
	MaxPH              = 14.0

	CannyLowThreshold  = 100.0
	CannyHighThreshold = 200.0

	// pyramid levels are not built below this side length
	minPyramidSize = 32
)

// FarnebackParams configures the dense optical flow estimator
type FarnebackParams struct {
	PyrScale   float64 `json:"pyr_scale"`
	Levels     int     `json:"levels"`
	WinSize    int     `json:"win_size"`
	Iterations int     `json:"iterations"`
	PolyN      int     `json:"poly_n"`
	PolySigma  float64 `json:"poly_sigma"`
}

// DefaultFarnebackParams returns the parameters used for river frames
func DefaultFarnebackParams() FarnebackParams {
	return FarnebackParams{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
	}
}

// Validate rejects parameter sets the estimator cannot run with
func (p FarnebackParams) Validate() error {
	if p.PyrScale <= 0 || p.PyrScale >= 1 {
		return fmt.Errorf("pyr_scale must be in (0, 1), got %f", p.PyrScale)
	}
	if p.Levels < 0 {
		return fmt.Errorf("levels must be >= 0, got %d", p.Levels)
	}
	if p.WinSize < 1 || p.WinSize%2 == 0 {
		return fmt.Errorf("win_size must be a positive odd number, got %d", p.WinSize)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", p.Iterations)
	}
	if p.PolyN < 1 {
		return fmt.Errorf("poly_n must be >= 1, got %d", p.PolyN)
	}
	if p.PolySigma <= 0 {
		return fmt.Errorf("poly_sigma must be > 0, got %f", p.PolySigma)
	}
	return nil
}

// AnalysisOptions provides configuration for frame analysis
type AnalysisOptions struct {
	Farneback FarnebackParams

	// Feature toggles
	SkipMotion   bool
	SkipFeatures bool

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Farneback:  DefaultFarnebackParams(),
		MaxWorkers: 0, // Use default CPU count
	}
}

// FastOptions trades flow accuracy for speed: a shallower pyramid and a single
// refinement pass per level.
func FastOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.Farneback.Levels = 1
	opts.Farneback.Iterations = 1
	return opts
}

// WithFarneback replaces the flow estimator parameters
func (opts AnalysisOptions) WithFarneback(params FarnebackParams) AnalysisOptions {
	opts.Farneback = params
	return opts
}

// WithMaxWorkers caps the number of kernel workers
func (opts AnalysisOptions) WithMaxWorkers(n int) AnalysisOptions {
	opts.MaxWorkers = n
	return opts
}

// WithoutMotion disables flow estimation; samples carry no flow reading
func (opts AnalysisOptions) WithoutMotion() AnalysisOptions {
	opts.SkipMotion = true
	return opts
}

// WithoutFeatures disables colour and edge features; samples carry no
// temperature or pH reading
func (opts AnalysisOptions) WithoutFeatures() AnalysisOptions {
	opts.SkipFeatures = true
	return opts
}

// Validate checks the options before an analyzer is built
func (opts AnalysisOptions) Validate() error {
	if opts.SkipMotion && opts.SkipFeatures {
		return fmt.Errorf("at least one of motion or features must be enabled")
	}
	return opts.Farneback.Validate()
}
