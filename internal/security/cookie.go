package security

import (
	"net/http"
	"time"
)

// Cookie names for the token pair.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookiePolicy builds token cookies according to environment: Secure and
// SameSite=None in production, SameSite=Lax and insecure otherwise. Both
// cookies are HttpOnly with path /.
type CookiePolicy struct {
	Production bool
}

func (p CookiePolicy) build(name, value string, expiresAt, now time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(expiresAt.Sub(now).Seconds()),
	}
	if p.Production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// AccessCookie builds the access-token cookie.
func (p CookiePolicy) AccessCookie(token string, expiresAt, now time.Time) *http.Cookie {
	return p.build(AccessTokenCookie, token, expiresAt, now)
}

// RefreshCookie builds the refresh-token cookie.
func (p CookiePolicy) RefreshCookie(token string, expiresAt, now time.Time) *http.Cookie {
	return p.build(RefreshTokenCookie, token, expiresAt, now)
}

// ClearCookies expires both token cookies on the response.
func (p CookiePolicy) ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		}
		if p.Production {
			c.Secure = true
			c.SameSite = http.SameSiteNoneMode
		} else {
			c.SameSite = http.SameSiteLaxMode
		}
		http.SetCookie(w, c)
	}
}
