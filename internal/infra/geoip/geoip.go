// Package geoip resolves client IPs to coarse location. The GeoIP database
// is external; the core consumes it through the Resolver interface and
// tolerates every lookup failure.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the subset of GeoIP data the analytics pipeline stores.
// Fields are nil when unresolved.
type Location struct {
	CountryCode *string
	City        *string
}

// Resolver maps an IP address to a Location. Lookups are synchronous and
// must never block on I/O beyond the local database file.
type Resolver interface {
	Resolve(ip string) Location
	Close() error
}

// MaxMindResolver reads a MaxMind GeoIP2/GeoLite2 mmdb file.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// Open opens the database at path.
func Open(path string) (*MaxMindResolver, error) {
	const op = "geoip.Open"

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Resolve looks up ip. Failures return an empty Location.
func (r *MaxMindResolver) Resolve(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}

	record, err := r.reader.City(parsed)
	if err != nil || record == nil {
		return Location{}
	}

	var loc Location
	if code := record.Country.IsoCode; code != "" {
		loc.CountryCode = &code
	}
	if name := record.City.Names["en"]; name != "" {
		loc.City = &name
	}
	return loc
}

// Close releases the underlying reader.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// Noop is the Resolver used when no database is configured.
type Noop struct{}

// Resolve returns an empty Location.
func (Noop) Resolve(string) Location { return Location{} }

// Close is a no-op.
func (Noop) Close() error { return nil }
