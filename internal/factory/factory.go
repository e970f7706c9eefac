package factory

import (
	"fmt"
	"sync"
	"time"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/errors"
	"go-rivermind/internal/storage"
)

// AnalyzerType represents different analyzer configurations
type AnalyzerType string

const (
	// StandardAnalyzer uses the full flow pyramid
	StandardAnalyzer AnalyzerType = "standard"
	// FastAnalyzer trades flow accuracy for throughput
	FastAnalyzer AnalyzerType = "fast"
	// StillAnalyzer extracts temperature and pH only, for unordered stills
	StillAnalyzer AnalyzerType = "still"
	// FlowAnalyzer measures motion only
	FlowAnalyzer AnalyzerType = "flow"
)

// StorageType represents different frame sources
type StorageType string

const (
	// HTTPStorage fetches frames over HTTP(S)
	HTTPStorage StorageType = "http"
	// AzureStorage fetches frames from Azure blob storage
	AzureStorage StorageType = "azure"
)

// AnalyzerFactory creates frame analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(analyzerType AnalyzerType) (analyzer.FrameAnalyzer, error)
}

// StorageFactory creates frame fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.FrameFetcher, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	maxWorkers int
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(maxWorkers int) AnalyzerFactory {
	return &analyzerFactory{maxWorkers: maxWorkers}
}

// CreateAnalyzer creates an analyzer based on the specified type
func (f *analyzerFactory) CreateAnalyzer(analyzerType AnalyzerType) (analyzer.FrameAnalyzer, error) {
	switch analyzerType {
	case StandardAnalyzer, "":
		return analyzer.NewFrameAnalyzerWithOptions(analyzer.DefaultOptions().WithMaxWorkers(f.maxWorkers))
	case FastAnalyzer:
		return analyzer.NewFrameAnalyzerWithOptions(analyzer.FastOptions().WithMaxWorkers(f.maxWorkers))
	case StillAnalyzer:
		return analyzer.NewFrameAnalyzerWithOptions(analyzer.DefaultOptions().WithoutMotion().WithMaxWorkers(f.maxWorkers))
	case FlowAnalyzer:
		return analyzer.NewFrameAnalyzerWithOptions(analyzer.DefaultOptions().WithoutFeatures().WithMaxWorkers(f.maxWorkers))
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported analyzer type: %s", analyzerType), nil)
	}
}

// StorageConfig carries what the fetchers need
type StorageConfig struct {
	FetchTimeout     time.Duration
	AzureAccountName string
	AzureAccountKey  string
}

// storageFactory implements StorageFactory. Fetchers are built once and reused.
type storageFactory struct {
	cfg StorageConfig

	mu      sync.Mutex
	created map[StorageType]storage.FrameFetcher
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg StorageConfig) StorageFactory {
	return &storageFactory{cfg: cfg, created: make(map[StorageType]storage.FrameFetcher)}
}

// CreateStorage returns the fetcher for the specified source
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.FrameFetcher, error) {
	if storageType == "" {
		storageType = HTTPStorage
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if fetcher, ok := f.created[storageType]; ok {
		return fetcher, nil
	}

	var (
		fetcher storage.FrameFetcher
		err     error
	)
	switch storageType {
	case HTTPStorage:
		fetcher = storage.NewHTTPFrameFetcher(f.cfg.FetchTimeout)
	case AzureStorage:
		if f.cfg.AzureAccountName == "" || f.cfg.AzureAccountKey == "" {
			return nil, errors.NewUnavailableError("azure storage is not configured", nil)
		}
		fetcher, err = storage.NewAzureFrameStore(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
		if err != nil {
			return nil, errors.NewUnavailableError("azure storage could not be initialised", err)
		}
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported storage type: %s", storageType), nil)
	}

	f.created[storageType] = fetcher
	return fetcher, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(maxWorkers int, storageCfg StorageConfig) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(maxWorkers),
		StorageFactory:  NewStorageFactory(storageCfg),
	}
}
