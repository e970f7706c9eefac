// Package emotion maps smoothed river readings to a status label.
package emotion

import "math"

// Label is a discrete river status
type Label string

const (
	Angry   Label = "angry"
	Sad     Label = "sad"
	Excited Label = "excited"
	Calm    Label = "calm"
	Happy   Label = "happy"
	Neutral Label = "neutral"
)

// Labels lists every label in rule priority order
var Labels = []Label{Angry, Sad, Excited, Calm, Happy, Neutral}

// Threshold rule bounds. Strict comparisons are strict, ranges are inclusive.
const (
	AngryMinTemperature = 35.0
	AngryMinFlow        = 80.0

	SadMinPH = 5.0
	SadMaxPH = 9.0

	ExcitedMinFlow        = 90.0
	ExcitedMinTemperature = 25.0
	ExcitedMaxTemperature = 40.0

	CalmMaxTemperature = 10.0
	CalmMaxFlow        = 30.0

	HappyMinTemperature = 20.0
	HappyMaxTemperature = 30.0
	HappyMinPH          = 6.5
	HappyMaxPH          = 8.5
	HappyMinFlow        = 40.0
	HappyMaxFlow        = 60.0
)

// Classify evaluates the threshold rules in priority order; the first match wins.
func Classify(temperature, ph, flow float64) Label {
	switch {
	case temperature > AngryMinTemperature && flow > AngryMinFlow:
		return Angry
	case ph < SadMinPH || ph > SadMaxPH:
		return Sad
	case flow > ExcitedMinFlow && between(temperature, ExcitedMinTemperature, ExcitedMaxTemperature):
		return Excited
	case temperature < CalmMaxTemperature && flow < CalmMaxFlow:
		return Calm
	case between(temperature, HappyMinTemperature, HappyMaxTemperature) &&
		between(ph, HappyMinPH, HappyMaxPH) &&
		between(flow, HappyMinFlow, HappyMaxFlow):
		return Happy
	default:
		return Neutral
	}
}

// Range is an inclusive optimal band
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Midpoint returns the centre of the band
func (r Range) Midpoint() float64 { return (r.Low + r.High) / 2 }

// Deviation is the distance from the midpoint in units of the band width
func (r Range) Deviation(v float64) float64 {
	return math.Abs((v - r.Midpoint()) / (r.High - r.Low))
}

// Optimal bands used by the stress score
var (
	OptimalTemperature     = Range{Low: 18, High: 25}
	OptimalPH              = Range{Low: 6.5, High: 8.5}
	OptimalFlow            = Range{Low: 50, High: 150}
	OptimalDissolvedOxygen = Range{Low: 7, High: 12}
)

// Stress bucket upper bounds (exclusive)
const (
	HappyMaxStress   = 0.2
	NeutralMaxStress = 0.4
	SadMaxStress     = 0.6
)

// Readings are the inputs to the stress score
type Readings struct {
	Temperature     float64 `json:"temperature"`
	PH              float64 `json:"ph"`
	Flow            float64 `json:"flow"`
	DissolvedOxygen float64 `json:"dissolved_oxygen"`
}

// StressScore averages the normalised deviation of each reading from its optimal band
func StressScore(r Readings) float64 {
	return (OptimalTemperature.Deviation(r.Temperature) +
		OptimalPH.Deviation(r.PH) +
		OptimalFlow.Deviation(r.Flow) +
		OptimalDissolvedOxygen.Deviation(r.DissolvedOxygen)) / 4
}

// ClassifyStress buckets the stress score. It is independent of Classify and
// may disagree with it for the same readings.
func ClassifyStress(r Readings) Label {
	stress := StressScore(r)
	switch {
	case stress < HappyMaxStress:
		return Happy
	case stress < NeutralMaxStress:
		return Neutral
	case stress < SadMaxStress:
		return Sad
	default:
		return Angry
	}
}

// Valid reports whether s names a known label
func Valid(s string) bool {
	for _, l := range Labels {
		if string(l) == s {
			return true
		}
	}
	return false
}

func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
