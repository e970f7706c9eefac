package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultAlertLimit is used when a caller asks for a non-positive limit
const DefaultAlertLimit = 50

// MaxAlertLimit caps how many alerts a single query returns
const MaxAlertLimit = 500

// SQLiteAlertRepository implements AlertRepository on SQLite
type SQLiteAlertRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteAlertRepository opens the database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func NewSQLiteAlertRepository(path string) (*SQLiteAlertRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// in-memory databases are per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	r := &SQLiteAlertRepository{db: db, now: time.Now}
	if err := r.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the alert table if needed
func (r *SQLiteAlertRepository) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS drowning_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message TEXT NOT NULL,
			severity TEXT NOT NULL DEFAULT 'high',
			session_id TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drowning_alerts_time ON drowning_alerts(created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (r *SQLiteAlertRepository) Close() error {
	return r.db.Close()
}

// SaveAlert validates and stores an alert
func (r *SQLiteAlertRepository) SaveAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("%w: nil alert", ErrInvalidAlert)
	}
	alert.Message = strings.TrimSpace(alert.Message)
	if alert.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidAlert)
	}
	sev, err := ParseSeverity(string(alert.Severity))
	if err != nil {
		return err
	}
	alert.Severity = sev
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = r.now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO drowning_alerts (message, severity, session_id, created_at) VALUES (?, ?, ?, ?)`,
		alert.Message, string(alert.Severity), nullString(alert.SessionID), alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	alert.ID = id
	return nil
}

// GetAlert retrieves an alert by id
func (r *SQLiteAlertRepository) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, message, severity, session_id, created_at FROM drowning_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return a, nil
}

// RecentAlerts lists the newest alerts first
func (r *SQLiteAlertRepository) RecentAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	if limit > MaxAlertLimit {
		limit = MaxAlertLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, message, severity, session_id, created_at FROM drowning_alerts
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	defer rows.Close()

	alerts := make([]*Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return alerts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(s scanner) (*Alert, error) {
	var (
		a         Alert
		severity  string
		sessionID sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Message, &severity, &sessionID, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Severity = Severity(severity)
	a.SessionID = sessionID.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
