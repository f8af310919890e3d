// Package analytics parses request metadata into click events and persists
// them through a bounded background worker.
package analytics

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/geoip"
)

// Ingestor turns raw request attributes into AnalyticEvents.
type Ingestor struct {
	parser *uaparser.Parser
	geo    geoip.Resolver
}

// NewIngestor creates an Ingestor using the embedded uap-core definitions.
func NewIngestor(geo geoip.Resolver) *Ingestor {
	return &Ingestor{
		parser: uaparser.NewFromSaved(),
		geo:    geo,
	}
}

// ClickInfo carries the raw request attributes of one resolution.
type ClickInfo struct {
	IP        string
	UserAgent string
	Referer   string
}

// Build assembles the analytic event for one click. GeoIP failures leave the
// location fields nil; the user agent is truncated before persistence.
func (i *Ingestor) Build(urlID int64, info ClickInfo, at time.Time) *domain.AnalyticEvent {
	ev := &domain.AnalyticEvent{
		URLID:      urlID,
		ClickedAt:  at,
		IPAddress:  info.IP,
		DeviceType: domain.DeviceUnknown,
	}

	if info.Referer != "" {
		ref := info.Referer
		ev.Referer = &ref
	}

	if info.UserAgent != "" {
		ua := info.UserAgent
		if len(ua) > domain.MaxUserAgentLen {
			ua = ua[:domain.MaxUserAgentLen]
		}
		ev.UserAgent = &ua

		client := i.parser.Parse(info.UserAgent)
		ev.Browser = client.UserAgent.Family
		ev.OS = client.Os.Family
		ev.DeviceType = classifyDevice(info.UserAgent, client)
	}

	loc := i.geo.Resolve(info.IP)
	ev.CountryCode = loc.CountryCode
	ev.City = loc.City

	return ev
}

// classifyDevice maps the parsed client onto the device taxonomy with
// priority mobile > tablet > desktop > bot > unknown.
func classifyDevice(rawUA string, client *uaparser.Client) domain.DeviceType {
	ua := strings.ToLower(rawUA)
	device := strings.ToLower(client.Device.Family)

	tablet := strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") ||
		strings.Contains(device, "tablet") || strings.Contains(device, "ipad") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"))

	mobile := strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") ||
		strings.Contains(device, "phone") || strings.Contains(device, "iphone") ||
		(strings.Contains(ua, "android") && strings.Contains(ua, "mobile"))

	bot := strings.Contains(device, "spider") || strings.Contains(device, "bot") ||
		strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") ||
		strings.Contains(ua, "spider")

	desktop := strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") ||
		strings.Contains(ua, "x11") || strings.Contains(ua, "linux")

	switch {
	case mobile:
		return domain.DeviceMobile
	case tablet:
		return domain.DeviceTablet
	case desktop:
		return domain.DeviceDesktop
	case bot:
		return domain.DeviceBot
	default:
		return domain.DeviceUnknown
	}
}

// Recorder persists analytic events on background workers. The channel is
// bounded; when it is full the event is written synchronously so increments
// are not lost under load.
type Recorder struct {
	repo    domain.AnalyticsRepo
	querier domain.Querier
	logger  *slog.Logger

	events chan *domain.AnalyticEvent
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRecorder starts workers draining the event queue.
func NewRecorder(repo domain.AnalyticsRepo, querier domain.Querier, workers, queueLen int, logger *slog.Logger) *Recorder {
	if workers <= 0 {
		workers = 2
	}
	if queueLen <= 0 {
		queueLen = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		repo:    repo,
		querier: querier,
		logger:  logger,
		events:  make(chan *domain.AnalyticEvent, queueLen),
		cancel:  cancel,
	}

	for w := 0; w < workers; w++ {
		r.wg.Add(1)
		go r.run(ctx)
	}
	return r
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain whatever is still queued before exiting.
			for {
				select {
				case ev := <-r.events:
					r.persist(ev)
				default:
					return
				}
			}
		case ev := <-r.events:
			r.persist(ev)
		}
	}
}

func (r *Recorder) persist(ev *domain.AnalyticEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.Insert(ctx, r.querier, ev); err != nil {
		r.logger.Error("analytic event insert failed", "url_id", ev.URLID, "err", err)
	}
}

// Record enqueues the event; falls back to a synchronous write when the
// queue is saturated.
func (r *Recorder) Record(ev *domain.AnalyticEvent) {
	select {
	case r.events <- ev:
	default:
		r.persist(ev)
	}
}

// Close stops the workers and waits for the queue to drain.
func (r *Recorder) Close() {
	r.cancel()
	r.wg.Wait()
}
