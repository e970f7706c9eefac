package analyzer

import (
	"image"
	"time"
)

// Features holds the colour and texture readings of a single frame
type Features struct {
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`

	MeanValue        float64 `json:"mean_value"`
	SaturationStdDev float64 `json:"saturation_stddev"`
	EdgeDensity      float64 `json:"edge_density"`
}

// Sample is the raw, unsmoothed output of one analysis step.
// HasFlow is false for the first frame of a stream or when motion is disabled.
// HasFeatures is false when feature extraction is disabled; Temperature and PH
// are then zero and must not be treated as readings.
type Sample struct {
	Flow        float64 `json:"flow"`
	HasFlow     bool    `json:"has_flow"`
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`
	HasFeatures bool    `json:"has_features"`
}

// Measurement is what the analyzer returns for one frame. Gray is the frame's
// grayscale copy, to be handed back as the previous frame on the next call.
type Measurement struct {
	Sample         Sample
	Features       Features
	Gray           *image.Gray
	ProcessingTime time.Duration
}

// FlowField is a dense per-pixel displacement field
type FlowField struct {
	Width  int
	Height int
	// DX and DY are row-major, len Width*Height
	DX []float64
	DY []float64
}

// NewFlowField allocates a zero field
func NewFlowField(width, height int) *FlowField {
	n := width * height
	return &FlowField{
		Width:  width,
		Height: height,
		DX:     make([]float64, n),
		DY:     make([]float64, n),
	}
}

// At returns the displacement at pixel (x, y)
func (f *FlowField) At(x, y int) (float64, float64) {
	i := y*f.Width + x
	return f.DX[i], f.DY[i]
}
