package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookiePolicy_Production(t *testing.T) {
	p := CookiePolicy{Production: true}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := p.AccessCookie("tok", now.Add(2*time.Hour), now)
	assert.Equal(t, AccessTokenCookie, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, 7200, c.MaxAge)
}

func TestCookiePolicy_Development(t *testing.T) {
	p := CookiePolicy{Production: false}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := p.RefreshCookie("ref", now.Add(7*24*time.Hour), now)
	assert.Equal(t, RefreshTokenCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 604800, c.MaxAge)
}

func TestCookiePolicy_ClearCookies(t *testing.T) {
	p := CookiePolicy{}
	w := httptest.NewRecorder()

	p.ClearCookies(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Contains(t, []string{AccessTokenCookie, RefreshTokenCookie}, c.Name)
		assert.Equal(t, -1, c.MaxAge)
		assert.Empty(t, c.Value)
	}
}
