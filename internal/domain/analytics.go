package domain

import "time"

// DeviceType classifies the client device for an analytic event.
type DeviceType string

// Device classes in priority order: mobile > tablet > desktop > bot > unknown.
const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// MaxUserAgentLen bounds the persisted user-agent string.
const MaxUserAgentLen = 255

// AnalyticEvent is one resolution of a short URL. Rows are append-only.
// Geo fields are nil when the GeoIP lookup fails; lookup failures are
// tolerated, never fatal.
type AnalyticEvent struct {
	URLID       int64
	ClickedAt   time.Time
	IPAddress   string
	CountryCode *string
	City        *string
	UserAgent   *string
	Referer     *string
	DeviceType  DeviceType
	Browser     string
	OS          string
}
