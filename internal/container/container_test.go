package container

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-rivermind/internal/config"

	"github.com/gin-gonic/gin"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DatabasePath = ":memory:"
	cfg.OCRLanguage = ""
	cfg.UploadDir = t.TempDir()
	cfg.AnalyzerType = "fast"
	cfg.MaxWorkers = 2
	cfg.SessionIdleTTL = time.Minute
	return cfg
}

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	c.Start()
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected healthy server, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected session to be created, got %d", rec.Code)
	}
	if got := c.Service().Stats().ActiveSessions; got != 1 {
		t.Errorf("Expected 1 active session, got %d", got)
	}
}

func TestNewContainer_UnknownAnalyzer(t *testing.T) {
	cfg := testConfig(t)
	cfg.AnalyzerType = "quantum"
	if _, err := NewContainer(cfg); err == nil {
		t.Error("Expected error for unknown analyzer type")
	}
}
