package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"go-rivermind/internal/errors"
)

// createTestImage creates a uniform test image
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// createSquareImage draws a bright square on a dark background
func createSquareImage(width, height, sqX, sqY, size int) *image.RGBA {
	img := createTestImage(width, height, color.RGBA{20, 30, 40, 255})
	for y := sqY; y < sqY+size && y < height; y++ {
		for x := sqX; x < sqX+size && x < width; x++ {
			img.Set(x, y, color.RGBA{220, 210, 200, 255})
		}
	}
	return img
}

func mustFrame(t *testing.T, img image.Image) *Frame {
	t.Helper()
	f, err := NewFrame(img)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func newTestAnalyzer(t *testing.T, opts AnalysisOptions) FrameAnalyzer {
	t.Helper()
	a, err := NewFrameAnalyzerWithOptions(opts)
	if err != nil {
		t.Fatalf("Failed to create frame analyzer: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewFrameAnalyzer(t *testing.T) {
	a, err := NewFrameAnalyzer()
	if err != nil {
		t.Fatalf("Failed to create frame analyzer: %v", err)
	}
	defer a.Close()
	if a.Stats().Workers <= 0 {
		t.Error("Expected a started worker pool")
	}
}

func TestNewFrameAnalyzer_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Farneback.WinSize = 4

	_, err := NewFrameAnalyzerWithOptions(opts)
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestMeasure_FirstFrameHasNoFlow(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	frame := mustFrame(t, createTestImage(40, 30, color.RGBA{128, 128, 128, 255}))

	m, err := a.Measure(nil, frame)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Sample.HasFlow {
		t.Error("Expected no flow reading without a previous frame")
	}
	if m.Gray == nil || m.Gray.Bounds().Dx() != 40 || m.Gray.Bounds().Dy() != 30 {
		t.Fatalf("Expected 40x30 grayscale output, got %v", m.Gray)
	}
}

func TestMeasure_UniformGray(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	img := createTestImage(64, 48, color.RGBA{128, 128, 128, 255})
	frame := mustFrame(t, img)

	first, err := a.Measure(nil, frame)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantTemp := 128.0 / 255.0 * 50.0
	if math.Abs(first.Sample.Temperature-wantTemp) > 1e-9 {
		t.Errorf("Expected temperature %.4f, got %.4f", wantTemp, first.Sample.Temperature)
	}
	if first.Sample.PH != 7.0 {
		t.Errorf("Expected neutral pH for a flat grey frame, got %f", first.Sample.PH)
	}
	if first.Features.EdgeDensity != 0 {
		t.Errorf("Expected no edges, got density %f", first.Features.EdgeDensity)
	}

	second, err := a.Measure(first.Gray, mustFrame(t, img))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !second.Sample.HasFlow {
		t.Fatal("Expected a flow reading for the second frame")
	}
	if second.Sample.Flow != 0 {
		t.Errorf("Expected zero flow for identical frames, got %f", second.Sample.Flow)
	}
}

func TestMeasure_IdenticalTexturedFramesHaveZeroFlow(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	img := createSquareImage(80, 64, 20, 18, 24)

	first, err := a.Measure(nil, mustFrame(t, img))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := a.Measure(first.Gray, mustFrame(t, img))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.Sample.Flow != 0 {
		t.Errorf("Expected zero flow, got %f", second.Sample.Flow)
	}
}

func TestMeasure_MovingSquareHasFlow(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())

	first, err := a.Measure(nil, mustFrame(t, createSquareImage(64, 64, 20, 20, 16)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := a.Measure(first.Gray, mustFrame(t, createSquareImage(64, 64, 22, 21, 16)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if second.Sample.Flow <= 0 {
		t.Errorf("Expected positive flow for a moving square, got %f", second.Sample.Flow)
	}
	if second.Sample.Flow > MaxFlowIntensity {
		t.Errorf("Flow %f exceeds the maximum", second.Sample.Flow)
	}
}

func TestMeasure_DimensionMismatch(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())

	first, err := a.Measure(nil, mustFrame(t, createTestImage(32, 32, color.RGBA{10, 10, 10, 255})))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err = a.Measure(first.Gray, mustFrame(t, createTestImage(48, 32, color.RGBA{10, 10, 10, 255})))
	if !errors.IsType(err, errors.ErrorTypeDimensionMismatch) {
		t.Errorf("Expected dimension mismatch error, got %v", err)
	}
}

func TestMeasure_NilFrame(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	if _, err := a.Measure(nil, nil); !errors.IsType(err, errors.ErrorTypeInvalidFrame) {
		t.Errorf("Expected invalid frame error, got %v", err)
	}
}

func TestMeasure_WithoutMotion(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions().WithoutMotion())
	img := createSquareImage(40, 40, 5, 5, 10)

	first, _ := a.Measure(nil, mustFrame(t, img))
	second, err := a.Measure(first.Gray, mustFrame(t, createSquareImage(40, 40, 8, 8, 10)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.Sample.HasFlow {
		t.Error("Expected no flow reading when motion is disabled")
	}
	if !second.Sample.HasFeatures {
		t.Error("Expected features to stay enabled")
	}
}

func TestMeasure_WithoutFeatures(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions().WithoutFeatures())

	first, err := a.Measure(nil, mustFrame(t, createSquareImage(40, 40, 5, 5, 10)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.Sample.HasFeatures {
		t.Error("Expected no feature reading when features are disabled")
	}
	if first.Sample.Temperature != 0 || first.Sample.PH != 0 {
		t.Errorf("Expected zero temperature and pH, got %+v", first.Sample)
	}

	second, err := a.Measure(first.Gray, mustFrame(t, createSquareImage(40, 40, 8, 8, 10)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !second.Sample.HasFlow || second.Sample.HasFeatures {
		t.Errorf("Expected a flow-only sample, got %+v", second.Sample)
	}
}

func TestMeasure_DeterministicAcrossWorkerCounts(t *testing.T) {
	img := createSquareImage(97, 61, 13, 7, 29)
	next := createSquareImage(97, 61, 15, 9, 29)

	var samples []Sample
	for _, workers := range []int{1, 3, 8} {
		a := newTestAnalyzer(t, DefaultOptions().WithMaxWorkers(workers))
		first, err := a.Measure(nil, mustFrame(t, img))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		second, err := a.Measure(first.Gray, mustFrame(t, next))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		samples = append(samples, second.Sample)
	}

	for i := 1; i < len(samples); i++ {
		if samples[i] != samples[0] {
			t.Errorf("Sample differs with worker count: %+v vs %+v", samples[i], samples[0])
		}
	}
}

func TestMeasure_OutputRanges(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())

	noisy := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			v := uint8((x*37 + y*91) % 256)
			noisy.Set(x, y, color.RGBA{v, 255 - v, uint8(x * 5), 255})
		}
	}
	first, err := a.Measure(nil, mustFrame(t, noisy))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s := first.Sample
	if s.Temperature < 0 || s.Temperature > 50 {
		t.Errorf("Temperature %f out of range", s.Temperature)
	}
	if s.PH < 0 || s.PH > 14 {
		t.Errorf("pH %f out of range", s.PH)
	}
}
