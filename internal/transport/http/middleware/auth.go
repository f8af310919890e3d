// Package middleware provides HTTP middleware for the transport layer.
// This file implements the access-token extraction wrappers: optional user
// identification with silent refresh, the required-user gate, and the admin
// gate. Gates are explicit handler wrappers that return early with 401/403.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
	"github.com/iruldev/shortlink-api/internal/usecase/session"
)

// AuthConfig wires the auth wrappers.
type AuthConfig struct {
	Sessions *session.Service
	Tokens   *security.TokenService
	Cookies  security.CookiePolicy
	Clock    domain.Clock
	Logger   *slog.Logger
}

// bearerToken extracts the access token: Authorization: Bearer first, then
// the access_token cookie.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(security.AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// OptionalUser identifies the caller when credentials are present but never
// rejects. With no usable access token but a valid refresh cookie it performs
// the silent refresh: a fresh access token is minted, the session row is
// touched, and both cookies are re-set on the outgoing response.
func OptionalUser(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if userID, err := cfg.Sessions.UserID(token); err == nil {
					ctx := app.SetAuthContext(r.Context(), &app.AuthContext{UserID: userID})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				cfg.Logger.DebugContext(r.Context(), "access token rejected, trying silent refresh")
			}

			// Silent refresh on activity.
			if c, err := r.Cookie(security.RefreshTokenCookie); err == nil && c.Value != "" {
				pair, refreshErr := cfg.Sessions.Refresh(r.Context(), c.Value)
				if refreshErr == nil {
					now := cfg.Clock.Now()
					http.SetCookie(w, cfg.Cookies.AccessCookie(pair.AccessToken, pair.AccessExpiresAt, now))
					http.SetCookie(w, cfg.Cookies.RefreshCookie(pair.RefreshToken, pair.RefreshExpiresAt, now))

					if userID, err := cfg.Sessions.UserID(pair.AccessToken); err == nil {
						ctx := app.SetAuthContext(r.Context(), &app.AuthContext{UserID: userID})
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				} else {
					cfg.Logger.DebugContext(r.Context(), "silent refresh failed", "err", refreshErr)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests whose context carries no authenticated user.
// Compose after OptionalUser.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := app.GetAuthContext(r.Context())
		if auth == nil || auth.UserID == "" {
			writeUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminGate admits only callers presenting a valid admin token. The token is
// validated on every call, never cached.
func AdminGate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, r)
				return
			}
			if err := cfg.Tokens.VerifyAdminToken(token, cfg.Clock.Now); err != nil {
				cfg.Logger.WarnContext(r.Context(), "admin gate rejected", "err", err)
				contract.WriteProblemJSON(w, r, &app.AppError{
					Op:      "AdminGate",
					Code:    app.CodeForbidden,
					Message: "Forbidden",
				})
				return
			}
			ctx := app.SetAuthContext(r.Context(), &app.AuthContext{Admin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes an RFC 7807 error response for authentication failures.
// It intentionally provides no detail about why authentication failed.
func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	contract.WriteProblemJSON(w, r, &app.AppError{
		Op:      "auth",
		Code:    app.CodeUnauthorized,
		Message: "Unauthorized",
	})
}
