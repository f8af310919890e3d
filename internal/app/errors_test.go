package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	plain := &AppError{Op: "Shorten", Code: CodeConflict, Message: "collision"}
	assert.Equal(t, "Shorten: collision", plain.Error())

	wrapped := &AppError{Op: "Shorten", Code: CodeInternalError, Message: "insert failed", Err: errors.New("pq: down")}
	assert.Equal(t, "Shorten: insert failed: pq: down", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := &AppError{Op: "Login", Code: CodeUnauthorized, Message: "bad credentials", Err: inner}

	assert.True(t, errors.Is(err, inner))
}

func TestAuthContext_RoundTrip(t *testing.T) {
	ctx := SetAuthContext(t.Context(), &AuthContext{UserID: "user-1"})
	got := GetAuthContext(ctx)

	assert.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.False(t, got.IsAdmin())

	assert.Nil(t, GetAuthContext(t.Context()))
}

func TestAuthContext_IsAdmin(t *testing.T) {
	var nilCtx *AuthContext
	assert.False(t, nilCtx.IsAdmin())
	assert.True(t, (&AuthContext{Admin: true}).IsAdmin())
}
