package domain

import "time"

// LogLevel is the severity of a persisted log entry.
type LogLevel string

// Persisted log severities.
const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

// LogEntry is a structured log row persisted by the error funnel.
// Metadata is arbitrary JSON (field errors, panic context, etc.).
type LogEntry struct {
	ID         int64
	Level      LogLevel
	Message    string
	Path       *string
	Method     *string
	StatusCode *int
	UserID     *string
	Stacktrace *string
	Metadata   map[string]any
	CreatedAt  time.Time
}
