// Package session owns per-stream analysis state: the previous grayscale frame
// and the rolling windows. Each session processes frames strictly in order.
package session

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/emotion"
	"go-rivermind/internal/smoother"
)

// Record is the smoothed reading and status after a frame
type Record struct {
	Flow        float64       `json:"flow"`
	Temperature float64       `json:"temperature"`
	PH          float64       `json:"ph"`
	Emotion     emotion.Label `json:"emotion"`
}

// Result carries the smoothed record together with the raw per-frame measurement
type Result struct {
	Record
	Raw            analyzer.Sample   `json:"raw"`
	Features       analyzer.Features `json:"features"`
	FrameIndex     int               `json:"frame_index"`
	ProcessingTime time.Duration     `json:"-"`
}

// Step runs one frame through the pipeline: measure against prev, push the
// readings into sm and classify the window means. Flow is pushed only when the
// sample carries a flow reading, temperature and pH only when it carries
// features. On error sm is left untouched.
func Step(a analyzer.FrameAnalyzer, sm *smoother.Smoother, prev *image.Gray, frame *analyzer.Frame) (Record, analyzer.Measurement, error) {
	m, err := a.Measure(prev, frame)
	if err != nil {
		return Record{}, analyzer.Measurement{}, err
	}

	if m.Sample.HasFlow {
		sm.Push(smoother.Flow, m.Sample.Flow)
	}
	if m.Sample.HasFeatures {
		sm.Push(smoother.Temperature, m.Sample.Temperature)
		sm.Push(smoother.PH, m.Sample.PH)
	}

	return Snapshot(sm), m, nil
}

// Snapshot classifies the current window means; empty windows read as 0
func Snapshot(sm *smoother.Smoother) Record {
	flow := sm.Mean(smoother.Flow, 0)
	temperature := sm.Mean(smoother.Temperature, 0)
	ph := sm.Mean(smoother.PH, 0)
	return Record{
		Flow:        flow,
		Temperature: temperature,
		PH:          ph,
		Emotion:     emotion.Classify(temperature, ph, flow),
	}
}

// Session is one isolated frame stream
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	analyzer analyzer.FrameAnalyzer
	smoother *smoother.Smoother
	prev     *image.Gray
	frames   int

	lastActive atomic.Int64 // unix nanos
}

// Summary describes a session's current state
type Summary struct {
	ID           string         `json:"session_id"`
	Frames       int            `json:"frames"`
	Samples      map[string]int `json:"samples"`
	Record       Record         `json:"record"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
}

// New creates a session with its own windows of the given capacity
func New(id string, a analyzer.FrameAnalyzer, windowSize int) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		analyzer:  a,
		smoother:  smoother.New(windowSize),
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// Analyze processes frame to completion before any other frame of this session
func (s *Session) Analyze(frame *analyzer.Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(s.prev, frame)
}

// AnalyzeAgainst measures frame against an explicit previous frame instead of
// the stored one. A nil prev falls back to the stored frame.
func (s *Session) AnalyzeAgainst(prev *analyzer.Frame, frame *analyzer.Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev == nil {
		return s.step(s.prev, frame)
	}
	return s.step(analyzer.ToGrayscale(prev), frame)
}

func (s *Session) step(prev *image.Gray, frame *analyzer.Frame) (Result, error) {
	s.touch()

	rec, m, err := Step(s.analyzer, s.smoother, prev, frame)
	if err != nil {
		return Result{}, err
	}
	s.prev = m.Gray
	s.frames++

	return Result{
		Record:         rec,
		Raw:            m.Sample,
		Features:       m.Features,
		FrameIndex:     s.frames - 1,
		ProcessingTime: m.ProcessingTime,
	}, nil
}

// Current returns the smoothed record without analysing a frame
func (s *Session) Current() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return Snapshot(s.smoother)
}

// HasPrevious reports whether the next frame will produce a flow reading
func (s *Session) HasPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev != nil
}

// Frames returns how many frames were analysed
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Reset drops the previous frame and empties the windows
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prev = nil
	s.frames = 0
	s.smoother.Reset()
}

// Summary returns a snapshot of the session
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make(map[string]int, len(smoother.Metrics))
	for _, m := range smoother.Metrics {
		samples[string(m)] = s.smoother.Len(m)
	}
	return Summary{
		ID:           s.ID,
		Frames:       s.frames,
		Samples:      samples,
		Record:       Snapshot(s.smoother),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
	}
}

// LastActivity returns when the session was last used
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}
