package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go-rivermind/internal/alerts"
	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/config"
	"go-rivermind/internal/decoder"
	"go-rivermind/internal/emotion"
	apperrors "go-rivermind/internal/errors"
	"go-rivermind/internal/factory"
	"go-rivermind/internal/logger"
	"go-rivermind/internal/observer"
	"go-rivermind/internal/overlay"
	"go-rivermind/internal/repository"
	"go-rivermind/internal/session"
	"go-rivermind/internal/strategy"
	"go-rivermind/pkg/models"
	"go-rivermind/pkg/validation"

	"github.com/sirupsen/logrus"
)

// FlowRateScale converts the smoothed flow score to an approximate m³/s
const FlowRateScale = 0.1

// RiverService defines the operations exposed over HTTP and the CLI
type RiverService interface {
	// Session lifecycle
	CreateSession() models.CreateSessionResponse
	GetSession(id string) (session.Summary, error)
	DeleteSession(id string) error

	// Frame analysis
	AnalyzeFrame(ctx context.Context, sessionID string, data []byte, expectedLabel string) (*models.FrameAnalysisResponse, error)
	AnalyzeRemoteFrame(ctx context.Context, sessionID string, req models.RemoteFrameRequest) (*models.FrameAnalysisResponse, error)
	Flow(ctx context.Context, sessionID string, frame []byte, prev []byte) (*models.FlowResponse, error)
	AnalyzeVideo(ctx context.Context, path string) (*models.VideoAnalysisResponse, error)

	// Status
	Alerts(sessionID string) (alerts.Report, error)
	Emotion(sessionID string) (*models.EmotionResponse, error)
	Classify(req models.ClassifyRequest) (*models.ClassifyResponse, error)

	// Drowning alerts
	RecordDrowningAlert(ctx context.Context, req models.DrowningAlertRequest) (*repository.Alert, error)
	DrowningAlerts(ctx context.Context, limit int) ([]*repository.Alert, error)

	Stats() models.StatsResponse
}

// Dependencies wires a river service. Verifier and Alerts may be nil, in
// which case the features they back report unavailable.
type Dependencies struct {
	Sessions  *session.Store
	Analyzer  analyzer.FrameAnalyzer
	Storage   factory.StorageFactory
	Alerts    repository.AlertRepository
	Verifier  *overlay.Verifier
	Publisher observer.Subject
	Metrics   *observer.MetricsObserver
	OpenVideo decoder.Opener
	Video     decoder.SampleOptions
	Reference config.ReferenceReadings
}

// riverService implements RiverService
type riverService struct {
	deps      Dependencies
	sources   *validation.FrameSourceValidator
	readings  *validation.ReadingsValidator
	startedAt time.Time

	alertsMu sync.Mutex
	alerts   *alerts.Evaluator
}

// NewRiverService creates a new river service
func NewRiverService(deps Dependencies) RiverService {
	if deps.Publisher == nil {
		deps.Publisher = observer.NewEventPublisher()
	}
	if deps.OpenVideo == nil {
		deps.OpenVideo = decoder.OpenVideo
	}
	return &riverService{
		deps:      deps,
		sources:   validation.NewFrameSourceValidator(),
		readings:  validation.NewReadingsValidator(),
		startedAt: time.Now(),
		alerts:    alerts.New(nil),
	}
}

// CreateSession opens a new frame stream
func (s *riverService) CreateSession() models.CreateSessionResponse {
	return models.CreateSessionResponse{SessionID: s.deps.Sessions.Create().ID}
}

// GetSession returns the smoothed state of a session
func (s *riverService) GetSession(id string) (session.Summary, error) {
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		return session.Summary{}, err
	}
	return sess.Summary(), nil
}

// DeleteSession closes a session
func (s *riverService) DeleteSession(id string) error {
	return s.deps.Sessions.Delete(id)
}

// AnalyzeFrame decodes an uploaded frame and runs it through the session
func (s *riverService) AnalyzeFrame(ctx context.Context, sessionID string, data []byte, expectedLabel string) (*models.FrameAnalysisResponse, error) {
	sess, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	frame, _, err := decoder.DecodeImage(data)
	if err != nil {
		s.publishFailure(ctx, sessionID, "upload", err)
		return nil, err
	}
	return s.analyze(ctx, sess, "upload", frame, expectedLabel)
}

// AnalyzeRemoteFrame fetches a frame from HTTP or Azure and analyses it
func (s *riverService) AnalyzeRemoteFrame(ctx context.Context, sessionID string, req models.RemoteFrameRequest) (*models.FrameAnalysisResponse, error) {
	sess, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	source := factory.StorageType(strings.ToLower(strings.TrimSpace(req.Source)))
	if source == "" {
		source = factory.HTTPStorage
	}
	if err := s.sources.Validate(string(source), req.URL); err != nil {
		return nil, err
	}

	fetcher, err := s.deps.Storage.CreateStorage(source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := fetcher.FetchFrame(ctx, req.URL)
	if err != nil {
		fetchErr := classifyFetchError(err)
		s.deps.Publisher.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:      observer.FrameFetchFailed,
			SessionID:      sessionID,
			Source:         string(source),
			ProcessingTime: time.Since(start),
			ErrorMessage:   fetchErr.Error(),
		})
		return nil, fetchErr
	}
	s.deps.Publisher.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:      observer.FrameFetched,
		SessionID:      sessionID,
		Source:         string(source),
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"bytes": len(data)},
	})

	frame, _, err := decoder.DecodeImage(data)
	if err != nil {
		s.publishFailure(ctx, sessionID, string(source), err)
		return nil, err
	}
	return s.analyze(ctx, sess, string(source), frame, req.ExpectedLabel)
}

// Flow analyses a frame against an uploaded or stored previous frame and
// reports the smoothed flow. Without a session id an unregistered session is used.
func (s *riverService) Flow(ctx context.Context, sessionID string, frameData []byte, prevData []byte) (*models.FlowResponse, error) {
	var (
		sess *session.Session
		err  error
	)
	if sessionID == "" {
		sess = s.deps.Sessions.Ephemeral()
	} else if sess, err = s.deps.Sessions.Get(sessionID); err != nil {
		return nil, err
	}

	frame, _, err := decoder.DecodeImage(frameData)
	if err != nil {
		return nil, err
	}
	var prev *analyzer.Frame
	if len(prevData) > 0 {
		if prev, _, err = decoder.DecodeImage(prevData); err != nil {
			return nil, err
		}
	}

	res, err := sess.AnalyzeAgainst(prev, frame)
	if err != nil {
		s.publishFailure(ctx, sess.ID, "flow", err)
		return nil, err
	}
	s.publishSuccess(ctx, sess.ID, "flow", res)

	resp := &models.FlowResponse{
		Flow:        res.Flow,
		FlowRateM3S: res.Flow * FlowRateScale,
		HasFlow:     res.Raw.HasFlow,
	}
	if sessionID != "" {
		resp.SessionID = sess.ID
	}
	return resp, nil
}

// AnalyzeVideo runs sampled frames of a video file through a fresh session
func (s *riverService) AnalyzeVideo(ctx context.Context, path string) (*models.VideoAnalysisResponse, error) {
	start := time.Now()
	src, err := s.deps.OpenVideo(path)
	if err != nil {
		s.publishFailure(ctx, "", "video", err)
		return nil, err
	}
	defer src.Close()

	sess := s.deps.Sessions.Ephemeral()
	n, err := decoder.Sample(ctx, src, s.deps.Video, func(index int, frame *analyzer.Frame) error {
		res, err := sess.Analyze(frame)
		if err != nil {
			return err
		}
		s.publishSuccess(ctx, sess.ID, "video", res)
		return nil
	})
	if err != nil {
		s.publishFailure(ctx, sess.ID, "video", err)
		return nil, err
	}

	rec := sess.Current()
	elapsed := time.Since(start)
	s.deps.Publisher.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:      observer.VideoCompleted,
		SessionID:      sess.ID,
		Source:         "video",
		ProcessingTime: elapsed,
		Success:        true,
		Emotion:        string(rec.Emotion),
		Metadata:       map[string]interface{}{"frames": n},
	})

	return &models.VideoAnalysisResponse{
		Temperature:       rec.Temperature,
		PH:                rec.PH,
		Flow:              rec.Flow,
		Emotion:           string(rec.Emotion),
		FramesAnalyzed:    n,
		ProcessingTimeSec: elapsed.Seconds(),
	}, nil
}

// Alerts evaluates the threshold table against session or reference readings
func (s *riverService) Alerts(sessionID string) (alerts.Report, error) {
	r, _, err := s.currentReadings(sessionID)
	if err != nil {
		return alerts.Report{}, err
	}

	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	return s.alerts.Evaluate(r), nil
}

// Emotion reports the stress-based status of the river
func (s *riverService) Emotion(sessionID string) (*models.EmotionResponse, error) {
	r, source, err := s.currentReadings(sessionID)
	if err != nil {
		return nil, err
	}
	return &models.EmotionResponse{
		Emotion:         string(emotion.ClassifyStress(r)),
		StressScore:     emotion.StressScore(r),
		Temperature:     r.Temperature,
		PH:              r.PH,
		FlowRate:        r.Flow,
		DissolvedOxygen: r.DissolvedOxygen,
		WaterLevel:      s.deps.Reference.WaterLevel,
		Clarity:         s.deps.Reference.Clarity,
		Source:          source,
		Timestamp:       time.Now().UTC(),
	}, nil
}

// Classify labels explicit readings with the requested strategy
func (s *riverService) Classify(req models.ClassifyRequest) (*models.ClassifyResponse, error) {
	if req.Temperature == nil || req.PH == nil || req.Flow == nil {
		return nil, apperrors.NewValidationError("temperature, ph and flow are required", nil)
	}
	r := emotion.Readings{
		Temperature:     *req.Temperature,
		PH:              *req.PH,
		Flow:            *req.Flow,
		DissolvedOxygen: s.deps.Reference.DissolvedOxygen,
	}
	if req.DissolvedOxygen != nil {
		r.DissolvedOxygen = *req.DissolvedOxygen
	}
	if err := s.readings.Validate(r.Temperature, r.PH, r.Flow, r.DissolvedOxygen); err != nil {
		return nil, err
	}

	strat, err := strategy.ForMode(req.Mode)
	if err != nil {
		return nil, apperrors.NewValidationError("Unsupported classification mode", err)
	}
	cc := strategy.NewClassificationContext(strat)
	mode := req.Mode
	if mode == "" {
		mode = string(strategy.ThresholdMode)
	}
	return &models.ClassifyResponse{
		Mode:        mode,
		Strategy:    cc.GetCurrentStrategy(),
		Emotion:     string(cc.Execute(r)),
		StressScore: emotion.StressScore(r),
	}, nil
}

// RecordDrowningAlert stores an alert raised by a detector
func (s *riverService) RecordDrowningAlert(ctx context.Context, req models.DrowningAlertRequest) (*repository.Alert, error) {
	if s.deps.Alerts == nil {
		return nil, apperrors.NewUnavailableError("alert storage is not configured", nil)
	}
	if req.SessionID != "" {
		if _, err := s.deps.Sessions.Get(req.SessionID); err != nil {
			return nil, err
		}
	}

	a := &repository.Alert{
		Message:   req.Message,
		Severity:  repository.Severity(req.Severity),
		SessionID: req.SessionID,
	}
	if err := s.deps.Alerts.SaveAlert(ctx, a); err != nil {
		return nil, repositoryError(err)
	}

	logger.WithFields(logrus.Fields{
		"alert_id":   a.ID,
		"severity":   a.Severity,
		"session_id": a.SessionID,
	}).Warn("Drowning alert recorded")
	return a, nil
}

// DrowningAlerts lists the most recent drowning alerts
func (s *riverService) DrowningAlerts(ctx context.Context, limit int) ([]*repository.Alert, error) {
	if s.deps.Alerts == nil {
		return nil, apperrors.NewUnavailableError("alert storage is not configured", nil)
	}
	list, err := s.deps.Alerts.RecentAlerts(ctx, limit)
	if err != nil {
		return nil, repositoryError(err)
	}
	return list, nil
}

// Stats reports pipeline counters
func (s *riverService) Stats() models.StatsResponse {
	resp := models.StatsResponse{
		Emotions:       map[string]int64{},
		ActiveSessions: s.deps.Sessions.Len(),
		UptimeSec:      time.Since(s.startedAt).Seconds(),
	}
	if s.deps.Metrics != nil {
		st := s.deps.Metrics.GetStats()
		resp.FramesAnalyzed = st.FramesAnalyzed
		resp.FramesFailed = st.FramesFailed
		resp.FetchFailures = st.FetchFailures
		resp.VideosCompleted = st.VideosCompleted
		resp.Emotions = st.Emotions
		resp.AvgProcessingTimeSec = st.AvgProcessingTime.Seconds()
	}
	if s.deps.Analyzer != nil {
		ps := s.deps.Analyzer.Stats()
		resp.Workers = ps.Workers
		resp.PoolJobsCompleted = ps.CompletedJobs
	}
	return resp
}

// analyze verifies the overlay first, so a failed check never advances the session
func (s *riverService) analyze(ctx context.Context, sess *session.Session, source string, frame *analyzer.Frame, expectedLabel string) (*models.FrameAnalysisResponse, error) {
	var check *models.OverlayCheck
	if expectedLabel != "" {
		var err error
		if check, err = s.verifyOverlay(frame, expectedLabel); err != nil {
			return nil, err
		}
	}

	res, err := sess.Analyze(frame)
	if err != nil {
		s.publishFailure(ctx, sess.ID, source, err)
		return nil, err
	}
	s.publishSuccess(ctx, sess.ID, source, res)

	if check != nil && !check.Matched {
		logger.WithFrame(sess.ID, res.FrameIndex).WithFields(logrus.Fields{
			"expected":   check.Expected,
			"recognized": check.Recognized,
			"cer":        check.CharacterErrorRate,
		}).Warn("Camera overlay does not match expected label")
	}

	resp := toFrameResponse(sess.ID, res)
	resp.Overlay = check
	return resp, nil
}

func (s *riverService) verifyOverlay(frame *analyzer.Frame, expected string) (*models.OverlayCheck, error) {
	if s.deps.Verifier == nil {
		return nil, apperrors.NewUnavailableError("overlay verification is not configured", nil)
	}
	r, err := s.deps.Verifier.Verify(frame, expected)
	if err != nil {
		return nil, err
	}
	return &models.OverlayCheck{
		Expected:           r.Expected,
		Recognized:         r.Recognized,
		CharacterErrorRate: r.CharacterErrorRate,
		WordErrorRate:      r.WordErrorRate,
		Matched:            r.Matched,
	}, nil
}

// currentReadings returns session means when the session has frames,
// otherwise the reference readings
func (s *riverService) currentReadings(sessionID string) (emotion.Readings, string, error) {
	ref := s.deps.Reference
	r := emotion.Readings{
		Temperature:     ref.Temperature,
		PH:              ref.PH,
		Flow:            ref.FlowRate,
		DissolvedOxygen: ref.DissolvedOxygen,
	}
	if sessionID == "" {
		return r, "reference", nil
	}

	sess, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		return emotion.Readings{}, "", err
	}
	if sess.Frames() == 0 {
		return r, "reference", nil
	}
	rec := sess.Current()
	r.Temperature = rec.Temperature
	r.PH = rec.PH
	r.Flow = rec.Flow
	return r, "session", nil
}

func (s *riverService) publishSuccess(ctx context.Context, sessionID, source string, res session.Result) {
	s.deps.Publisher.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:      observer.FrameAnalyzed,
		SessionID:      sessionID,
		Source:         source,
		ProcessingTime: res.ProcessingTime,
		Success:        true,
		Emotion:        string(res.Emotion),
		Metadata: map[string]interface{}{
			"frame_index": res.FrameIndex,
			"flow":        res.Flow,
		},
	})
}

func (s *riverService) publishFailure(ctx context.Context, sessionID, source string, err error) {
	s.deps.Publisher.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:    observer.FrameFailed,
		SessionID:    sessionID,
		Source:       source,
		ErrorMessage: err.Error(),
	})
}

func toFrameResponse(sessionID string, res session.Result) *models.FrameAnalysisResponse {
	return &models.FrameAnalysisResponse{
		SessionID:         sessionID,
		FrameIndex:        res.FrameIndex,
		Timestamp:         time.Now().UTC(),
		ProcessingTimeSec: res.ProcessingTime.Seconds(),
		Reading: models.Reading{
			Flow:        res.Flow,
			Temperature: res.Temperature,
			PH:          res.PH,
			Emotion:     string(res.Emotion),
		},
		Raw: models.RawReading{
			Flow:        res.Raw.Flow,
			HasFlow:     res.Raw.HasFlow,
			Temperature: res.Raw.Temperature,
			PH:          res.Raw.PH,
			HasFeatures: res.Raw.HasFeatures,
		},
		Features: models.FrameFeatures{
			MeanValue:        res.Features.MeanValue,
			SaturationStdDev: res.Features.SaturationStdDev,
			EdgeDensity:      res.Features.EdgeDensity,
		},
	}
}

// classifyFetchError maps fetcher failures onto API error types
func classifyFetchError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Frame fetch timeout", err)
	default:
		return apperrors.NewNetworkError("Failed to fetch frame", err)
	}
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidAlert):
		return apperrors.NewValidationError("Invalid drowning alert", err)
	case errors.Is(err, repository.ErrAlertNotFound):
		return apperrors.NewNotFoundError("Drowning alert not found", err)
	default:
		return apperrors.NewUnavailableError("Alert storage unavailable", err)
	}
}
