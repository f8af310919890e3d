package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"x-forwarded-for wins", "198.51.100.1, 10.0.0.1", "203.0.113.5", "192.0.2.9:4711", "198.51.100.1"},
		{"single forwarded token", "198.51.100.1", "", "192.0.2.9:4711", "198.51.100.1"},
		{"x-real-ip next", "", "203.0.113.5", "192.0.2.9:4711", "203.0.113.5"},
		{"socket peer last", "", "", "192.0.2.9:4711", "192.0.2.9"},
		{"peer without port", "", "", "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
