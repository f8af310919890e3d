// Package app provides application-layer types and utilities.
// This file contains the authenticated-actor context threaded from the
// transport layer into use cases.
package app

import (
	"context"
	"errors"
)

// ErrNoAuthContext indicates that no authentication context was found.
var ErrNoAuthContext = errors.New("no authentication context")

// AuthContext represents the authenticated actor for authorization checks.
// UserID is empty for the admin gate (admin tokens carry no user identity).
type AuthContext struct {
	UserID string // subject of the access token
	Admin  bool   // set only by the admin gate
}

// authContextKey is the unexported type for the context key to prevent collisions.
type authContextKey struct{}

// SetAuthContext stores the auth context in the request context.
func SetAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, authCtx)
}

// GetAuthContext retrieves the auth context from the request context.
// Returns nil if no auth context is present.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(authContextKey{}).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// IsAdmin reports whether the actor passed the admin gate.
func (ac *AuthContext) IsAdmin() bool {
	return ac != nil && ac.Admin
}
