// Package errorfunnel converts application errors into RFC 7807 responses
// and persists structured log entries. Log persistence is best-effort: pool
// exhaustion or database failure falls back to the process logger, and the
// user response is never delayed by the write.
package errorfunnel

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
)

// Funnel is the single sink for handler failures.
type Funnel struct {
	logs    domain.LogRepo
	querier domain.Querier
	clock   domain.Clock
	logger  *slog.Logger
}

// New creates a Funnel. logs may be nil in tests; persistence is skipped.
func New(logs domain.LogRepo, querier domain.Querier, clock domain.Clock, logger *slog.Logger) *Funnel {
	return &Funnel{logs: logs, querier: querier, clock: clock, logger: logger}
}

// Write maps err onto the problem contract, emits the response, and persists
// a log entry. Statuses below 500 log at WARN, 500 and above at ERROR.
func (f *Funnel) Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := contract.AsAppError(err)
	status := contract.MapCodeToStatus(appErr.Code)

	level := domain.LevelWarn
	slogLevel := slog.LevelWarn
	if status >= 500 {
		level = domain.LevelError
		slogLevel = slog.LevelError
	}

	f.logger.LogAttrs(r.Context(), slogLevel, "request failed",
		slog.String("op", appErr.Op),
		slog.String("code", appErr.Code),
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.Any("err", err),
	)

	contract.WriteProblem(w, contract.BuildProblem(appErr, r.URL.Path, f.clock.Now()))
	f.persist(r, level, appErr.Error(), status, appErr.Meta, nil)
}

// WriteValidation reports input-validation failures at WARN with the field
// errors attached to the entry's metadata.
func (f *Funnel) WriteValidation(w http.ResponseWriter, r *http.Request, errs []contract.ValidationError) {
	fields := make([]map[string]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, map[string]string{"field": e.Field, "message": e.Message})
	}

	f.logger.WarnContext(r.Context(), "validation failed",
		slog.String("path", r.URL.Path), slog.Any("fields", fields))

	contract.WriteValidationError(w, r, errs)
	f.persist(r, domain.LevelWarn, "validation failed", http.StatusBadRequest,
		map[string]any{"fields": fields}, nil)
}

// WritePanic reports an uncaught failure at FATAL with the full stack in the
// persisted entry, returning a generic 500 to the client.
func (f *Funnel) WritePanic(w http.ResponseWriter, r *http.Request, rec any, stack []byte) {
	f.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", rec),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(stack)),
	)

	appErr := &app.AppError{
		Op:      "panic",
		Code:    app.CodeInternalError,
		Message: "An internal error occurred",
	}
	contract.WriteProblem(w, contract.BuildProblem(appErr, r.URL.Path, f.clock.Now()))

	stackStr := string(stack)
	f.persist(r, domain.LevelFatal, "panic recovered", http.StatusInternalServerError, nil, &stackStr)
}

// persist writes the log entry on a detached goroutine with its own
// deadline so a slow pool cannot stall the response path.
func (f *Funnel) persist(r *http.Request, level domain.LogLevel, message string, status int, meta map[string]any, stack *string) {
	if f.logs == nil {
		return
	}

	path := r.URL.Path
	method := r.Method
	entry := &domain.LogEntry{
		Level:      level,
		Message:    message,
		Path:       &path,
		Method:     &method,
		StatusCode: &status,
		Stacktrace: stack,
		Metadata:   meta,
		CreatedAt:  f.clock.Now(),
	}
	if auth := app.GetAuthContext(r.Context()); auth != nil && auth.UserID != "" {
		uid := auth.UserID
		entry.UserID = &uid
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := f.logs.Insert(ctx, f.querier, entry); err != nil {
			// Stderr fallback; the response has already been written.
			f.logger.Error("log persistence failed", "err", err, "message", message)
		}
	}()
}
