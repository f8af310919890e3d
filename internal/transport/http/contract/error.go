// Package contract provides HTTP transport layer contracts including
// RFC 7807 Problem Details for machine-readable error responses.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
)

// ProblemBaseURL is the default base URL for problem type URIs.
const ProblemBaseURL = "https://api.example.com/problems/"

var problemBaseURL atomic.Value // string

func init() {
	problemBaseURL.Store(ProblemBaseURL)
}

// Problem type slugs appended to the base URL.
const (
	ProblemTypeValidationErrorSlug = "validation-error"
	ProblemTypeNotFoundSlug        = "not-found"
	ProblemTypeConflictSlug        = "conflict"
	ProblemTypeInternalErrorSlug   = "internal-error"
	ProblemTypeUnauthorizedSlug    = "unauthorized"
	ProblemTypeForbiddenSlug       = "forbidden"
	ProblemTypeUnsafeDomainSlug    = "unsafe-domain"
	ProblemTypeRateLimitSlug       = "rate-limit-exceeded"
	ProblemTypeUpstreamSlug        = "upstream-unavailable"
)

// SetProblemBaseURL overrides the base URL for problem type URIs.
func SetProblemBaseURL(baseURL string) error {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return fmt.Errorf("problem base URL is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("problem base URL must be an absolute URL (scheme + host)")
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	problemBaseURL.Store(trimmed)
	return nil
}

// ProblemDetail represents an RFC 7807 Problem Details response, extended
// with the service's {detail, path, timestamp} contract and machine code.
type ProblemDetail struct {
	Type             string            `json:"type"`
	Title            string            `json:"title"`
	Status           int               `json:"status"`
	Detail           string            `json:"detail"`
	Path             string            `json:"path"`
	Timestamp        string            `json:"timestamp"`
	Code             string            `json:"code"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MapCodeToStatus maps AppError.Code to HTTP status code.
func MapCodeToStatus(code string) int {
	switch code {
	case app.CodeNotFound:
		return http.StatusNotFound // 404
	case app.CodeEmailExists, app.CodeConflict:
		return http.StatusConflict // 409
	case app.CodeValidationError, app.CodeUnsafeDomain:
		return http.StatusBadRequest // 400
	case app.CodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge // 413
	case app.CodeUnauthorized:
		return http.StatusUnauthorized // 401
	case app.CodeForbidden:
		return http.StatusForbidden // 403
	case app.CodeRateLimitExceeded:
		return http.StatusTooManyRequests // 429
	case app.CodeUpstreamUnavailable:
		return http.StatusBadGateway // 502
	case app.CodeInternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// codeToTitle returns a human-readable title for the error code.
func codeToTitle(code string) string {
	switch code {
	case app.CodeNotFound:
		return "Not Found"
	case app.CodeEmailExists:
		return "Email Already Exists"
	case app.CodeConflict:
		return "Conflict"
	case app.CodeValidationError:
		return "Validation Error"
	case app.CodeUnsafeDomain:
		return "Unsafe Domain"
	case app.CodeRequestTooLarge:
		return "Request Entity Too Large"
	case app.CodeUnauthorized:
		return "Unauthorized"
	case app.CodeForbidden:
		return "Forbidden"
	case app.CodeRateLimitExceeded:
		return "Too Many Requests"
	case app.CodeUpstreamUnavailable:
		return "Upstream Unavailable"
	case app.CodeInternalError:
		return "Internal Server Error"
	default:
		return "Internal Server Error"
	}
}

func codeToTypeSlug(code string) string {
	switch code {
	case app.CodeValidationError, app.CodeRequestTooLarge:
		return ProblemTypeValidationErrorSlug
	case app.CodeNotFound:
		return ProblemTypeNotFoundSlug
	case app.CodeEmailExists, app.CodeConflict:
		return ProblemTypeConflictSlug
	case app.CodeUnauthorized:
		return ProblemTypeUnauthorizedSlug
	case app.CodeForbidden:
		return ProblemTypeForbiddenSlug
	case app.CodeUnsafeDomain:
		return ProblemTypeUnsafeDomainSlug
	case app.CodeRateLimitExceeded:
		return ProblemTypeRateLimitSlug
	case app.CodeUpstreamUnavailable:
		return ProblemTypeUpstreamSlug
	default:
		return ProblemTypeInternalErrorSlug
	}
}

// problemTypeURL returns the RFC 7807 type URL.
func problemTypeURL(slug string) string {
	baseURL, ok := problemBaseURL.Load().(string)
	if !ok || baseURL == "" {
		baseURL = ProblemBaseURL
	}
	return baseURL + slug
}

// safeDetail returns a safe error message (no internal details for 5xx).
func safeDetail(appErr *app.AppError) string {
	if MapCodeToStatus(appErr.Code) >= 500 {
		return "An internal error occurred"
	}
	return appErr.Message
}

// AsAppError normalises any error into an *app.AppError: pass-through for
// application errors, domain-error mapping for wrapped domain kinds, and a
// generic internal error otherwise.
func AsAppError(err error) *app.AppError {
	var appErr *app.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code := ""
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = app.CodeNotFound
	case errors.Is(err, domain.ErrValidation):
		code = app.CodeValidationError
	case errors.Is(err, domain.ErrUnauthorized):
		code = app.CodeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		code = app.CodeForbidden
	case errors.Is(err, domain.ErrConflict):
		code = app.CodeConflict
	case errors.Is(err, domain.ErrUnsafeDomain):
		code = app.CodeUnsafeDomain
	case errors.Is(err, domain.ErrUpstream):
		code = app.CodeUpstreamUnavailable
	}

	if code != "" {
		return &app.AppError{Op: "handler", Code: code, Message: err.Error(), Err: err}
	}
	return &app.AppError{
		Op:      "unknown",
		Code:    app.CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// BuildProblem assembles the ProblemDetail for an error at the given path.
func BuildProblem(appErr *app.AppError, path string, now time.Time) ProblemDetail {
	var validationErrors []ValidationError
	if appErr.Code == app.CodeValidationError {
		var fieldErrs *FieldErrors
		if errors.As(appErr.Err, &fieldErrs) {
			validationErrors = fieldErrs.Errors
		}
		if len(validationErrors) == 0 {
			validationErrors = []ValidationError{{Field: "validation", Message: appErr.Message}}
		}
	}

	return ProblemDetail{
		Type:             problemTypeURL(codeToTypeSlug(appErr.Code)),
		Title:            codeToTitle(appErr.Code),
		Status:           MapCodeToStatus(appErr.Code),
		Detail:           safeDetail(appErr),
		Path:             path,
		Timestamp:        now.UTC().Format(time.RFC3339),
		Code:             appErr.Code,
		ValidationErrors: validationErrors,
	}
}

// FieldErrors carries per-field validation failures through an AppError.
type FieldErrors struct {
	Errors []ValidationError
}

func (e *FieldErrors) Error() string {
	return fmt.Sprintf("%d field(s) failed validation", len(e.Errors))
}

// WriteProblem serialises the problem. 401 responses carry WWW-Authenticate.
func WriteProblem(w http.ResponseWriter, problem ProblemDetail) {
	if problem.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	payload, err := json.Marshal(problem)
	if err != nil {
		_, _ = w.Write([]byte(`{"type":"` + problemTypeURL(ProblemTypeInternalErrorSlug) +
			`","title":"Internal Server Error","status":500,"detail":"An internal error occurred","code":"INTERNAL_ERROR"}`))
		return
	}
	_, _ = w.Write(payload)
}

// WriteProblemJSON writes an RFC 7807 error response for err.
// Prefer the error funnel, which also persists the log entry; this helper is
// for middleware that runs before the funnel is available.
func WriteProblemJSON(w http.ResponseWriter, r *http.Request, err error) {
	appErr := AsAppError(err)
	WriteProblem(w, BuildProblem(appErr, r.URL.Path, time.Now()))
}

// WriteValidationError writes a validation error response.
func WriteValidationError(w http.ResponseWriter, r *http.Request, validationErrors []ValidationError) {
	WriteProblemJSON(w, r, &app.AppError{
		Op:      "validation",
		Code:    app.CodeValidationError,
		Message: "One or more fields failed validation",
		Err:     &FieldErrors{Errors: validationErrors},
	})
}
