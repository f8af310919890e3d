package domain

import "time"

// LinkDomain is a canonicalised destination domain (scheme://host/), unique
// by the MD5 of its canonical URL. IsSecure starts true on first sighting and
// flips to false when the threat-intel API reports the domain; flipping
// cascades deletion of the domain's short URLs.
type LinkDomain struct {
	ID       int64
	URL      string
	URLHash  string
	IsSecure bool
}

// ShortURL is a shortened link. ShortCode is unique, 7 characters from
// [A-Za-z0-9]. OriginalURLHash (MD5) backs deduplicated lookups. Clicks is
// maintained by an atomic database-side increment. Soft delete flips
// IsActive; hard delete removes the row.
type ShortURL struct {
	ID              int64
	DomainID        int64
	OriginalURL     string
	OriginalURLHash string
	ShortCode       string
	Clicks          int64
	PasswordHash    *string
	Title           *string
	Descr           *string
	ExpiresAt       *time.Time
	IsActive        bool
	CreatedAt       time.Time
}

// Expired reports whether the URL's expiry has passed at now.
// The boundary is exclusive: a URL expiring exactly at now is expired.
func (u *ShortURL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}

// PasswordProtected reports whether resolution requires a password.
func (u *ShortURL) PasswordProtected() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserURL is the ownership edge between a user and a short URL.
// Favouriting is per-owner, not per-URL.
type UserURL struct {
	URLID      int64
	UserID     string
	IsFavorite bool
}

// URLStats is the aggregate view returned by the stats endpoint.
type URLStats struct {
	ShortCode    string
	OriginalURL  string
	TotalClicks  int64
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	LastClickAt  *time.Time
	TopCountries map[string]int64
	TopBrowsers  map[string]int64
}
