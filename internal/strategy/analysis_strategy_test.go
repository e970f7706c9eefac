package strategy

import (
	"testing"

	"go-rivermind/internal/emotion"
)

func TestForMode(t *testing.T) {
	tests := []struct {
		mode     string
		wantName string
		wantErr  bool
	}{
		{"threshold", "threshold", false},
		{"", "threshold", false},
		{"stress", "stress", false},
		{"vibes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s, err := ForMode(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForMode(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
			if !tt.wantErr && s.GetStrategyName() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, s.GetStrategyName())
			}
		})
	}
}

func TestClassificationContext_SwitchStrategy(t *testing.T) {
	r := emotion.Readings{Temperature: 24.7, PH: 7.5, Flow: 90, DissolvedOxygen: 8.9}

	ctx := NewClassificationContext(NewThresholdStrategy())
	if got := ctx.Execute(r); got != emotion.Neutral {
		t.Errorf("Expected threshold strategy to return neutral, got %s", got)
	}

	ctx.SetStrategy(NewStressStrategy())
	if ctx.GetCurrentStrategy() != "stress" {
		t.Errorf("Expected stress strategy, got %s", ctx.GetCurrentStrategy())
	}
	if got := ctx.Execute(r); got != emotion.Happy {
		t.Errorf("Expected stress strategy to return happy, got %s", got)
	}
}

func TestThresholdStrategy_IgnoresOxygen(t *testing.T) {
	s := NewThresholdStrategy()
	low := emotion.Readings{Temperature: 36, PH: 7, Flow: 95, DissolvedOxygen: 0}
	high := low
	high.DissolvedOxygen = 20
	if s.Classify(low) != s.Classify(high) {
		t.Error("Expected dissolved oxygen not to affect threshold classification")
	}
}
