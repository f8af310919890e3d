// Package safebrowsing implements the threat-intelligence client used by the
// domain safety screen. The outbound call carries a hard 5 second timeout and
// is wrapped in a circuit breaker; failed lookups (network errors, non-200
// statuses, undecodable bodies) are retried with backoff up to
// RetryMaxAttempts attempts in all, definitive verdicts never are.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// threatTypes are the four categories screened on every lookup.
var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Checker is the narrow interface the domain service consumes.
type Checker interface {
	// Check returns true when the URL is flagged by any threat list.
	// A non-nil error means no verdict was obtained (fail closed, no cache).
	Check(ctx context.Context, url string) (unsafe bool, err error)
}

// Config tunes the client.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration

	// Circuit breaker
	CBMaxRequests      int
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold int

	// Retry (every failed lookup)
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
}

// Client calls the Safe Browsing v4 threatMatches:find endpoint.
type Client struct {
	cfg     Config
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a Client. The HTTP client's timeout is the hard ceiling
// on each attempt.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 2
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = 100 * time.Millisecond
	}

	threshold := uint32(5)
	if cfg.CBFailureThreshold > 0 {
		threshold = uint32(cfg.CBFailureThreshold)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "safebrowsing",
		MaxRequests: uint32(max(cfg.CBMaxRequests, 1)),
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})

	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

type findRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string `json:"threatTypes"`
		PlatformTypes    []string `json:"platformTypes"`
		ThreatEntryTypes []string `json:"threatEntryTypes"`
		ThreatEntries    []struct {
			URL string `json:"url"`
		} `json:"threatEntries"`
	} `json:"threatInfo"`
}

type findResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// Check screens one URL. The circuit breaker short-circuits when the
// upstream has been failing; every failed lookup (network error, non-200
// status, undecodable body) is retried — a parsed verdict, safe or unsafe,
// is returned immediately.
func (c *Client) Check(ctx context.Context, url string) (bool, error) {
	const op = "safebrowsing.Check"

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var unsafe bool

		backoff := retry.WithMaxRetries(
			uint64(c.cfg.RetryMaxAttempts-1),
			retry.NewExponential(c.cfg.RetryInitialDelay),
		)

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			verdict, attemptErr := c.lookup(ctx, url)
			if attemptErr != nil {
				return retry.RetryableError(attemptErr)
			}
			unsafe = verdict
			return nil
		})
		if err != nil {
			return nil, err
		}
		return unsafe, nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, domain.ErrUpstream, err)
	}

	return result.(bool), nil
}

func (c *Client) lookup(ctx context.Context, url string) (bool, error) {
	var payload findRequest
	payload.Client.ClientID = "shortlink-api"
	payload.Client.ClientVersion = "1.0"
	payload.ThreatInfo.ThreatTypes = threatTypes
	payload.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	payload.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	payload.ThreatInfo.ThreatEntries = []struct {
		URL string `json:"url"`
	}{{URL: url}}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"?key="+c.cfg.APIKey, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, errors.New("safebrowsing: status " + resp.Status)
	}

	var parsed findResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, err
	}
	return len(parsed.Matches) > 0, nil
}

// AlwaysSafe is the Checker used when no API key is configured (development
// only): every domain passes the screen.
type AlwaysSafe struct{}

// Check reports every URL as safe.
func (AlwaysSafe) Check(context.Context, string) (bool, error) { return false, nil }
