package analyzer

import (
	"fmt"
	"image"
	"sync"
	"time"

	"go-rivermind/internal/errors"
)

// coreAnalyzer implements FrameAnalyzer and orchestrates all components
type coreAnalyzer struct {
	workerPool        *WorkerPool
	metricsCalculator MetricsCalculator
	motionEstimator   MotionEstimator
	options           AnalysisOptions
}

// NewFrameAnalyzer creates a frame analyzer with the default options
func NewFrameAnalyzer() (FrameAnalyzer, error) {
	return NewFrameAnalyzerWithOptions(DefaultOptions())
}

// NewFrameAnalyzerWithOptions creates a frame analyzer with its own worker pool
func NewFrameAnalyzerWithOptions(options AnalysisOptions) (FrameAnalyzer, error) {
	if err := options.Validate(); err != nil {
		return nil, errors.NewValidationError("invalid analysis options", err)
	}

	workerPool := NewWorkerPool(options.MaxWorkers)
	workerPool.Start()

	motion, err := NewMotionEstimator(options.Farneback, workerPool)
	if err != nil {
		workerPool.Close()
		return nil, errors.NewValidationError("invalid flow parameters", err)
	}

	return &coreAnalyzer{
		workerPool:        workerPool,
		metricsCalculator: NewMetricsCalculator(workerPool),
		motionEstimator:   motion,
		options:           options,
	}, nil
}

// Measure computes flow against prev (when given) and the frame's own features.
// The two run concurrently; each splits its kernels across the worker pool.
func (ca *coreAnalyzer) Measure(prev *image.Gray, frame *Frame) (Measurement, error) {
	start := time.Now()

	if frame == nil {
		return Measurement{}, errors.NewInvalidFrameError("missing frame", nil)
	}
	if prev != nil && !sameSize(prev, frame) {
		pb := prev.Bounds()
		return Measurement{}, errors.NewDimensionMismatchError(
			fmt.Sprintf("previous frame is %dx%d, current frame is %s", pb.Dx(), pb.Dy(), frame.Size()), nil)
	}

	gray := ToGrayscale(frame)

	var (
		wg       sync.WaitGroup
		flow     float64
		flowErr  error
		features Features
	)

	computeFlow := prev != nil && !ca.options.SkipMotion
	if computeFlow {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flow, flowErr = ca.motionEstimator.FlowIntensity(prev, gray)
		}()
	}
	computeFeatures := !ca.options.SkipFeatures
	if computeFeatures {
		features = ca.metricsCalculator.ExtractFeatures(frame)
	}
	wg.Wait()

	if flowErr != nil {
		return Measurement{}, errors.NewProcessingError("optical flow failed", flowErr)
	}

	return Measurement{
		Sample: Sample{
			Flow:        flow,
			HasFlow:     computeFlow,
			Temperature: features.Temperature,
			PH:          features.PH,
			HasFeatures: computeFeatures,
		},
		Features:       features,
		Gray:           gray,
		ProcessingTime: time.Since(start),
	}, nil
}

// Stats returns the worker pool counters
func (ca *coreAnalyzer) Stats() PoolStats {
	return ca.workerPool.GetStats()
}

// Close shuts down the worker pool
func (ca *coreAnalyzer) Close() error {
	ca.workerPool.Close()
	return nil
}
