package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the millisecond RFC 3339 layout every log line uses
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Configure(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// Configure points the shared logger at w with JSON output at the named level
func Configure(w io.Writer, level string) {
	Logger.SetOutput(w)
	Logger.SetLevel(ParseLevel(level))
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: TimestampFormat,
	})
}

// ParseLevel maps LOG_LEVEL values to logrus levels, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// WithSession tags an entry with the analysis session id
func WithSession(sessionID string) *logrus.Entry {
	return Logger.WithField("session_id", sessionID)
}

// WithFrame tags an entry with a session id and the frame's position in the stream
func WithFrame(sessionID string, index int) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"frame_index": index,
	})
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}
