// Package alerts turns current readings into threshold alerts for the dashboard.
package alerts

import (
	"math/rand/v2"
	"time"

	"go-rivermind/internal/emotion"
)

// Alert thresholds
const (
	HighTemperature = 28.0
	LowTemperature  = 15.0
	HighPH          = 8.5
	LowPH           = 6.5
	HighFlow        = 150.0
	LowFlow         = 30.0
	LowOxygen       = 5.0

	// TipCount is how many awareness tips accompany a report
	TipCount = 2
)

// Alert is a single threshold breach
type Alert struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the full alert response
type Report struct {
	Alerts        []Alert   `json:"alerts"`
	AwarenessTips []string  `json:"awareness_tips"`
	Timestamp     time.Time `json:"timestamp"`
}

// AwarenessTips is the pool tips are drawn from
var AwarenessTips = []string{
	"Regular monitoring helps maintain river health",
	"Report any unusual changes in water color or smell",
	"Keep the riverbanks clean and free of debris",
	"Avoid disturbing natural habitats along the river",
	"Be mindful of water usage during dry seasons",
}

type rule struct {
	kind    string
	value   func(emotion.Readings) float64
	high    float64
	highMsg string
	low     float64
	lowMsg  string
	hasHigh bool
	hasLow  bool
}

var rules = []rule{
	{
		kind: "temperature", value: func(r emotion.Readings) float64 { return r.Temperature },
		hasHigh: true, high: HighTemperature, highMsg: "High temperature detected - potential risk to aquatic life",
		hasLow: true, low: LowTemperature, lowMsg: "Low temperature detected - monitor for ecosystem stress",
	},
	{
		kind: "ph", value: func(r emotion.Readings) float64 { return r.PH },
		hasHigh: true, high: HighPH, highMsg: "High pH levels - potential alkalinity issues",
		hasLow: true, low: LowPH, lowMsg: "Low pH levels - potential acidity issues",
	},
	{
		kind: "flow", value: func(r emotion.Readings) float64 { return r.Flow },
		hasHigh: true, high: HighFlow, highMsg: "High flow rate - potential flood risk",
		hasLow: true, low: LowFlow, lowMsg: "Low flow rate - potential drought conditions",
	},
	{
		kind: "oxygen", value: func(r emotion.Readings) float64 { return r.DissolvedOxygen },
		hasLow: true, low: LowOxygen, lowMsg: "Low oxygen levels - critical for aquatic life",
	},
}

// Evaluator builds alert reports. The zero value is not usable; use New.
type Evaluator struct {
	rng *rand.Rand
	now func() time.Time
}

// New creates an evaluator drawing tips from rng. A nil rng uses a randomly seeded source.
func New(rng *rand.Rand) *Evaluator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Evaluator{rng: rng, now: time.Now}
}

// Check returns the alerts raised by r, in a fixed order
func Check(r emotion.Readings, at time.Time) []Alert {
	out := make([]Alert, 0, len(rules))
	for _, rl := range rules {
		v := rl.value(r)
		switch {
		case rl.hasHigh && v > rl.high:
			out = append(out, Alert{Type: rl.kind, Severity: "high", Message: rl.highMsg, Value: v, Timestamp: at})
		case rl.hasLow && v < rl.low:
			out = append(out, Alert{Type: rl.kind, Severity: "low", Message: rl.lowMsg, Value: v, Timestamp: at})
		}
	}
	return out
}

// Evaluate builds a report with alerts and TipCount distinct tips.
// Evaluator is not safe for concurrent use.
func (e *Evaluator) Evaluate(r emotion.Readings) Report {
	now := e.now()
	return Report{
		Alerts:        Check(r, now),
		AwarenessTips: e.tips(TipCount),
		Timestamp:     now,
	}
}

func (e *Evaluator) tips(n int) []string {
	idx := e.rng.Perm(len(AwarenessTips))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = AwarenessTips[idx[i]]
	}
	return out
}
