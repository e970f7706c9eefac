package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents a pipeline event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id,omitempty"`
	Source         string                 `json:"source,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	Emotion        string                 `json:"emotion,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// FrameAnalyzed when a frame went through the pipeline
	FrameAnalyzed EventType = "frame_analyzed"
	// FrameFailed when a frame could not be analysed
	FrameFailed EventType = "frame_failed"
	// FrameFetched when a remote frame was downloaded
	FrameFetched EventType = "frame_fetched"
	// FrameFetchFailed when a remote frame download failed
	FrameFetchFailed EventType = "frame_fetch_failed"
	// VideoCompleted when every sampled frame of an upload was analysed
	VideoCompleted EventType = "video_completed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Emotion != "" {
		fields["emotion"] = event.Emotion
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case FrameAnalyzed:
		entry.Debug("Frame analysed")
	case FrameFailed:
		entry.Error("Frame analysis failed")
	case FrameFetched:
		entry.Debug("Frame fetched successfully")
	case FrameFetchFailed:
		entry.Error("Frame fetch failed")
	case VideoCompleted:
		entry.Info("Video analysis completed")
	default:
		entry.Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Stats is a snapshot of the metrics observer
type Stats struct {
	FramesAnalyzed      int64            `json:"frames_analyzed"`
	FramesFailed        int64            `json:"frames_failed"`
	FetchFailures       int64            `json:"fetch_failures"`
	VideosCompleted     int64            `json:"videos_completed"`
	Emotions            map[string]int64 `json:"emotions"`
	TotalProcessingTime time.Duration    `json:"total_processing_time"`
	AvgProcessingTime   time.Duration    `json:"avg_processing_time"`
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	framesAnalyzed      int64
	framesFailed        int64
	fetchFailures       int64
	videosCompleted     int64
	emotions            map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{emotions: make(map[string]int64)}
}

// OnEvent handles events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case FrameAnalyzed:
		o.framesAnalyzed++
		o.totalProcessingTime += event.ProcessingTime
		if event.Emotion != "" {
			o.emotions[event.Emotion]++
		}
	case FrameFailed:
		o.framesFailed++
	case FrameFetchFailed:
		o.fetchFailures++
	case VideoCompleted:
		o.videosCompleted++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetStats returns current metrics
func (o *MetricsObserver) GetStats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.framesAnalyzed > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.framesAnalyzed)
	}
	emotions := make(map[string]int64, len(o.emotions))
	for k, v := range o.emotions {
		emotions[k] = v
	}

	return Stats{
		FramesAnalyzed:      o.framesAnalyzed,
		FramesFailed:        o.framesFailed,
		FetchFailures:       o.fetchFailures,
		VideosCompleted:     o.videosCompleted,
		Emotions:            emotions,
		TotalProcessingTime: o.totalProcessingTime,
		AvgProcessingTime:   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
