// Package smoother keeps fixed-size rolling windows of recent readings.
package smoother

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultCapacity is the number of recent samples each channel averages over
const DefaultCapacity = 10

// Number is any reading a window can average
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Window is a fixed-capacity FIFO ring. Pushing into a full window evicts the oldest value.
type Window[T Number] struct {
	buf   []T
	start int
	size  int
}

// NewWindow creates an empty window holding at most capacity values
func NewWindow[T Number](capacity int) *Window[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full
func (w *Window[T]) Push(v T) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns how many values the window holds
func (w *Window[T]) Len() int { return w.size }

// Cap returns the window capacity
func (w *Window[T]) Cap() int { return len(w.buf) }

// Values returns the contents oldest first
func (w *Window[T]) Values() []T {
	out := make([]T, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Mean returns the arithmetic mean of the contents, or def when empty
func (w *Window[T]) Mean(def float64) float64 {
	if w.size == 0 {
		return def
	}
	data := make([]float64, w.size)
	for i, v := range w.Values() {
		data[i] = float64(v)
	}
	return stat.Mean(data, nil)
}

// Reset empties the window
func (w *Window[T]) Reset() {
	w.start, w.size = 0, 0
}

// Metric names a smoothed channel
type Metric string

const (
	Flow        Metric = "flow"
	Temperature Metric = "temperature"
	PH          Metric = "ph"
)

// Metrics lists the channels in a stable order
var Metrics = []Metric{Flow, Temperature, PH}

// ParseMetric maps a channel name to a Metric
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Smoother holds one window per channel. It is not safe for concurrent use;
// the owning session serialises access.
type Smoother struct {
	windows map[Metric]*Window[float64]
}

// New creates a smoother whose channels each hold capacity samples
func New(capacity int) *Smoother {
	s := &Smoother{windows: make(map[Metric]*Window[float64], len(Metrics))}
	for _, m := range Metrics {
		s.windows[m] = NewWindow[float64](capacity)
	}
	return s
}

// Push appends value to the metric's window
func (s *Smoother) Push(metric Metric, value float64) {
	if w, ok := s.windows[metric]; ok {
		w.Push(value)
	}
}

// Mean returns the metric's window mean, or def when nothing was pushed
func (s *Smoother) Mean(metric Metric, def float64) float64 {
	w, ok := s.windows[metric]
	if !ok {
		return def
	}
	return w.Mean(def)
}

// Len returns how many samples the metric's window holds
func (s *Smoother) Len(metric Metric) int {
	if w, ok := s.windows[metric]; ok {
		return w.Len()
	}
	return 0
}

// Reset empties every channel
func (s *Smoother) Reset() {
	for _, w := range s.windows {
		w.Reset()
	}
}
