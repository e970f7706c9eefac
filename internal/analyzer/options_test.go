package analyzer

import (
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	p := opts.Farneback
	if p.PyrScale != 0.5 || p.Levels != 3 || p.WinSize != 15 {
		t.Errorf("Unexpected pyramid/window defaults: %+v", p)
	}
	if p.Iterations != 3 || p.PolyN != 5 || p.PolySigma != 1.2 {
		t.Errorf("Unexpected refinement defaults: %+v", p)
	}
	if opts.SkipMotion || opts.SkipFeatures {
		t.Error("Expected motion and features enabled by default")
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestFastOptions(t *testing.T) {
	opts := FastOptions()

	if opts.Farneback.Levels != 1 {
		t.Errorf("Expected 1 pyramid level for fast options, got %d", opts.Farneback.Levels)
	}
	if opts.Farneback.Iterations != 1 {
		t.Errorf("Expected 1 iteration for fast options, got %d", opts.Farneback.Iterations)
	}
	if opts.Farneback.WinSize != DefaultFarnebackParams().WinSize {
		t.Error("Expected fast options to keep the default window")
	}
}

func TestOptionsChaining(t *testing.T) {
	params := DefaultFarnebackParams()
	params.WinSize = 9

	opts := DefaultOptions().WithFarneback(params).WithMaxWorkers(2).WithoutMotion()

	if opts.Farneback.WinSize != 9 {
		t.Errorf("Expected WinSize 9, got %d", opts.Farneback.WinSize)
	}
	if opts.MaxWorkers != 2 {
		t.Errorf("Expected MaxWorkers 2, got %d", opts.MaxWorkers)
	}
	if !opts.SkipMotion {
		t.Error("Expected motion to be disabled")
	}
}

func TestFarnebackParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *FarnebackParams)
		wantErr bool
	}{
		{"defaults", func(p *FarnebackParams) {}, false},
		{"zero levels", func(p *FarnebackParams) { p.Levels = 0 }, false},
		{"pyr scale one", func(p *FarnebackParams) { p.PyrScale = 1 }, true},
		{"even window", func(p *FarnebackParams) { p.WinSize = 14 }, true},
		{"no iterations", func(p *FarnebackParams) { p.Iterations = 0 }, true},
		{"negative levels", func(p *FarnebackParams) { p.Levels = -1 }, true},
		{"zero sigma", func(p *FarnebackParams) { p.PolySigma = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultFarnebackParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalysisOptions_ValidateNothingEnabled(t *testing.T) {
	opts := DefaultOptions().WithoutMotion().WithoutFeatures()
	if err := opts.Validate(); err == nil {
		t.Error("Expected error when both motion and features are disabled")
	}
}
