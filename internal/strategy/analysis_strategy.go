package strategy

import (
	"fmt"

	"go-rivermind/internal/emotion"
)

// Mode names a classification strategy
type Mode string

const (
	ThresholdMode Mode = "threshold"
	StressMode    Mode = "stress"
)

// EmotionStrategy defines the interface for the river status classifiers
type EmotionStrategy interface {
	Classify(r emotion.Readings) emotion.Label
	GetStrategyName() string
}

// ThresholdStrategy applies the ordered threshold rules. Dissolved oxygen is ignored.
type ThresholdStrategy struct{}

// NewThresholdStrategy creates a new threshold strategy
func NewThresholdStrategy() EmotionStrategy {
	return &ThresholdStrategy{}
}

// Classify evaluates the threshold rules on temperature, pH and flow
func (s *ThresholdStrategy) Classify(r emotion.Readings) emotion.Label {
	return emotion.Classify(r.Temperature, r.PH, r.Flow)
}

// GetStrategyName returns the strategy name
func (s *ThresholdStrategy) GetStrategyName() string {
	return string(ThresholdMode)
}

// StressStrategy buckets the deviation from optimal ranges
type StressStrategy struct{}

// NewStressStrategy creates a new stress score strategy
func NewStressStrategy() EmotionStrategy {
	return &StressStrategy{}
}

// Classify buckets the stress score of all four readings
func (s *StressStrategy) Classify(r emotion.Readings) emotion.Label {
	return emotion.ClassifyStress(r)
}

// GetStrategyName returns the strategy name
func (s *StressStrategy) GetStrategyName() string {
	return string(StressMode)
}

// ForMode returns the strategy registered under mode. An empty mode selects thresholds.
func ForMode(mode string) (EmotionStrategy, error) {
	switch Mode(mode) {
	case ThresholdMode, "":
		return NewThresholdStrategy(), nil
	case StressMode:
		return NewStressStrategy(), nil
	default:
		return nil, fmt.Errorf("unsupported classification mode: %s", mode)
	}
}

// ClassificationContext manages the classification strategy
type ClassificationContext struct {
	strategy EmotionStrategy
}

// NewClassificationContext creates a new classification context
func NewClassificationContext(strategy EmotionStrategy) *ClassificationContext {
	return &ClassificationContext{
		strategy: strategy,
	}
}

// SetStrategy changes the classification strategy
func (c *ClassificationContext) SetStrategy(strategy EmotionStrategy) {
	c.strategy = strategy
}

// Execute classifies the readings with the current strategy
func (c *ClassificationContext) Execute(r emotion.Readings) emotion.Label {
	return c.strategy.Classify(r)
}

// GetCurrentStrategy returns the current strategy name
func (c *ClassificationContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}
