package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity of a drowning alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalises a severity string. Empty input means high.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case "":
		return SeverityHigh, nil
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, s)
	}
}

// Alert is a recorded drowning alert
type Alert struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertRepository defines the interface for drowning alert persistence
type AlertRepository interface {
	// SaveAlert stores an alert and fills in its ID and CreatedAt
	SaveAlert(ctx context.Context, alert *Alert) error

	// GetAlert retrieves a stored alert by id
	GetAlert(ctx context.Context, id int64) (*Alert, error)

	// RecentAlerts returns at most limit alerts, newest first
	RecentAlerts(ctx context.Context, limit int) ([]*Alert, error)

	// Close releases the underlying database
	Close() error
}
