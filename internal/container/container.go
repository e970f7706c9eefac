package container

import (
	"fmt"
	"net/http"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/config"
	"go-rivermind/internal/decoder"
	"go-rivermind/internal/factory"
	"go-rivermind/internal/logger"
	"go-rivermind/internal/observer"
	"go-rivermind/internal/overlay"
	"go-rivermind/internal/repository"
	"go-rivermind/internal/service"
	"go-rivermind/internal/session"
	"go-rivermind/internal/smoother"
	"go-rivermind/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	analyzer analyzer.FrameAnalyzer
	sessions *session.Store
	alerts   repository.AlertRepository
	verifier *overlay.Verifier
	service  service.RiverService
	handler  http.Handler
}

// NewContainer builds the dependency graph from cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg.MaxWorkers, factory.StorageConfig{
		FetchTimeout:     cfg.FrameFetchTimeout,
		AzureAccountName: cfg.AzureAccountName,
		AzureAccountKey:  cfg.AzureAccountKey,
	})

	frameAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(factory.AnalyzerType(cfg.AnalyzerType))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	alertRepo, err := repository.NewSQLiteAlertRepository(cfg.DatabasePath)
	if err != nil {
		frameAnalyzer.Close()
		return nil, fmt.Errorf("failed to open alert database: %w", err)
	}

	// overlay checks are optional; the rest of the API works without tesseract
	var verifier *overlay.Verifier
	if cfg.OCRLanguage != "" {
		rec, err := overlay.NewTesseractRecognizer(cfg.OCRLanguage)
		if err != nil {
			logger.WithError(err).Warn("Overlay verification disabled")
		} else {
			verifier = overlay.NewVerifier(rec)
		}
	}

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	sessions := session.NewStore(frameAnalyzer, cfg.SessionIdleTTL, smoother.DefaultCapacity)

	svc := service.NewRiverService(service.Dependencies{
		Sessions:  sessions,
		Analyzer:  frameAnalyzer,
		Storage:   components.StorageFactory,
		Alerts:    alertRepo,
		Verifier:  verifier,
		Publisher: publisher,
		Metrics:   metrics,
		OpenVideo: decoder.OpenVideo,
		Video: decoder.SampleOptions{
			Stride:    cfg.VideoFrameStride,
			MaxFrames: cfg.VideoMaxFrames,
		},
		Reference: cfg.Reference,
	})

	return &Container{
		config:   cfg,
		analyzer: frameAnalyzer,
		sessions: sessions,
		alerts:   alertRepo,
		verifier: verifier,
		service:  svc,
		handler:  transport.NewHandler(svc, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the river service
func (c *Container) Service() service.RiverService {
	return c.service
}

// Start launches background work: the idle session janitor
func (c *Container) Start() {
	interval := c.config.SessionIdleTTL / 4
	if interval <= 0 {
		interval = c.config.SessionIdleTTL
	}
	c.sessions.StartJanitor(interval)
}

// Close stops background work and releases resources
func (c *Container) Close() error {
	c.sessions.Stop()
	if c.verifier != nil {
		if err := c.verifier.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close OCR client")
		}
	}
	if err := c.alerts.Close(); err != nil {
		return fmt.Errorf("failed to close alert database: %w", err)
	}
	return c.analyzer.Close()
}
