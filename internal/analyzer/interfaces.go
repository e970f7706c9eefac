package analyzer

import "image"

// FrameAnalyzer turns a frame, plus the previous frame's grayscale, into raw readings
type FrameAnalyzer interface {
	// Measure analyses frame. prev is nil for the first frame of a stream, in
	// which case the sample carries no flow reading.
	Measure(prev *image.Gray, frame *Frame) (Measurement, error)

	// Stats exposes the kernel worker pool counters
	Stats() PoolStats

	// Lifecycle management
	Close() error
}

// MetricsCalculator handles per-frame colour and texture metrics
type MetricsCalculator interface {
	CalculateColorStats(frame *Frame) colorStats
	CalculateEdgeDensity(frame *Frame) float64
	ExtractFeatures(frame *Frame) Features
}

// MotionEstimator handles two-frame motion
type MotionEstimator interface {
	DenseFlow(prev, cur *image.Gray) (*FlowField, error)
	FlowIntensity(prev, cur *image.Gray) (float64, error)
}
