package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator with strip-parallel kernels
type metricsCalculator struct {
	pool *WorkerPool
}

// NewMetricsCalculator creates a metrics calculator. A nil pool runs the
// kernels on the calling goroutine.
func NewMetricsCalculator(pool *WorkerPool) MetricsCalculator {
	return &metricsCalculator{pool: pool}
}

// colorStats holds the HSV statistics a frame's readings are built from
type colorStats struct {
	meanValue        float64 // mean of V in [0, 255]
	saturationStdDev float64 // population stddev of S in [0, 255]
}

// CalculateColorStats computes the mean HSV value and the spread of HSV saturation.
// Row partial sums are combined in row order so results do not depend on
// scheduling or on the number of workers.
func (mc *metricsCalculator) CalculateColorStats(frame *Frame) colorStats {
	img := frame.Image()
	w, h := frame.Width(), frame.Height()

	type regionResult struct {
		sumV, sumS, sumS2 float64
	}
	results := make([]regionResult, h)

	mc.pool.ForEachStrip(h, func(_, startY, endY int) {
		for y := startY; y < endY; y++ {
			var r regionResult
			row := img.Pix[y*img.Stride : y*img.Stride+w*4]
			for x := 0; x < w; x++ {
				s, v := saturationValue(row[x*4], row[x*4+1], row[x*4+2])
				r.sumV += v
				r.sumS += s
				r.sumS2 += s * s
			}
			results[y] = r
		}
	})

	var total regionResult
	for _, r := range results {
		total.sumV += r.sumV
		total.sumS += r.sumS
		total.sumS2 += r.sumS2
	}

	n := float64(w * h)
	meanS := total.sumS / n
	variance := total.sumS2/n - meanS*meanS
	if variance < 0 {
		variance = 0
	}
	return colorStats{
		meanValue:        total.sumV / n,
		saturationStdDev: math.Sqrt(variance),
	}
}

// CalculateEdgeDensity returns the mean of the Canny edge map, in [0, 255]
func (mc *metricsCalculator) CalculateEdgeDensity(frame *Frame) float64 {
	edges := cannyEdges(frame.Image(), CannyLowThreshold, CannyHighThreshold, mc.pool)
	if len(edges) == 0 {
		return 0
	}
	data := make([]float64, len(edges))
	for i, e := range edges {
		data[i] = float64(e)
	}
	return stat.Mean(data, nil)
}

// ExtractFeatures derives temperature and pH from a frame
func (mc *metricsCalculator) ExtractFeatures(frame *Frame) Features {
	cs := mc.CalculateColorStats(frame)
	edgeDensity := mc.CalculateEdgeDensity(frame)

	return Features{
		Temperature:      Temperature(cs.meanValue),
		PH:               PH(edgeDensity, cs.saturationStdDev),
		MeanValue:        cs.meanValue,
		SaturationStdDev: cs.saturationStdDev,
		EdgeDensity:      edgeDensity,
	}
}

// Temperature maps mean brightness in [0, 255] to degrees in [0, 50]
func Temperature(meanValue float64) float64 {
	return clampScore(meanValue/255.0*TemperatureScale, 0, TemperatureScale)
}

// PH rises with colour variability and falls with texture, clamped to [0, 14]
func PH(edgeDensity, saturationStdDev float64) float64 {
	ph := NeutralPH - edgeDensity/255.0*EdgePHWeight + saturationStdDev/255.0*SaturationPHWeight
	return clampScore(ph, MinPH, MaxPH)
}

// saturationValue returns HSV saturation and value on a 0-255 scale
func saturationValue(r, g, b uint8) (float64, float64) {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}

	v := float64(max)
	if max == 0 {
		return 0, v
	}
	s := float64(max-min) / float64(max) * 255.0
	return s, v
}
