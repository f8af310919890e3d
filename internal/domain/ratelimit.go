package domain

import "time"

// RateLimitViolation records a fixed-window overflow. Rows are unique per
// (ip_address, path, method, window_start); subsequent overflows in the same
// window increment Attempts and bump LastAttemptAt.
type RateLimitViolation struct {
	IPAddress     string
	Path          string
	Method        string
	WindowStart   time.Time
	Attempts      int
	CreatedAt     time.Time
	LastAttemptAt time.Time
}
