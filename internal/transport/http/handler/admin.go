package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/shared/monitor"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
)

// AdminHandler serves the management surface: users, URLs, domains,
// violations, logs, cache keys and process metrics. Every route sits behind
// the admin gate.
type AdminHandler struct {
	users      domain.UserRepo
	urls       domain.URLRepo
	domains    domain.DomainRepo
	violations domain.ViolationRepo
	logs       domain.LogRepo
	querier    domain.Querier
	cache      domain.Cache
	monitor    *monitor.Monitor
	funnel     *errorfunnel.Funnel
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	users domain.UserRepo,
	urls domain.URLRepo,
	domains domain.DomainRepo,
	violations domain.ViolationRepo,
	logs domain.LogRepo,
	querier domain.Querier,
	cache domain.Cache,
	mon *monitor.Monitor,
	funnel *errorfunnel.Funnel,
) *AdminHandler {
	return &AdminHandler{
		users:      users,
		urls:       urls,
		domains:    domains,
		violations: violations,
		logs:       logs,
		querier:    querier,
		cache:      cache,
		monitor:    mon,
		funnel:     funnel,
	}
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := contract.ParseListParams(r.URL.Query())
	users, total, err := h.users.List(r.Context(), h.querier, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	results := make([]UserResponse, 0, len(users))
	for _, u := range users {
		results = append(results, toUserResponse(u))
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(results, total, params))
}

// DeleteUser handles DELETE /api/v1/admin/users/{user_id}; owned URLs and
// sessions cascade.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	if err := h.users.Delete(r.Context(), h.querier, userID); err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListURLs handles GET /api/v1/admin/urls.
func (h *AdminHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	params := contract.ParseListParams(r.URL.Query())
	urls, total, err := h.urls.List(r.Context(), h.querier, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(urls, total, params))
}

// DeleteURL handles DELETE /api/v1/admin/urls/{id} (hard delete).
func (h *AdminHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.funnel.Write(w, r, domain.WrapError(domain.ErrValidation, "invalid url id"))
		return
	}

	if err := h.urls.Delete(r.Context(), h.querier, id); err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDomains handles GET /api/v1/admin/domains.
func (h *AdminHandler) ListDomains(w http.ResponseWriter, r *http.Request) {
	params := contract.ParseListParams(r.URL.Query())
	domains, total, err := h.domains.List(r.Context(), h.querier, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(domains, total, params))
}

// ListViolations handles GET /api/v1/admin/violations.
func (h *AdminHandler) ListViolations(w http.ResponseWriter, r *http.Request) {
	params := contract.ParseListParams(r.URL.Query())
	violations, total, err := h.violations.List(r.Context(), h.querier, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(violations, total, params))
}

// ListLogs handles GET /api/v1/admin/logs?level=ERROR.
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	params := contract.ParseListParams(r.URL.Query())

	var level *domain.LogLevel
	if raw := r.URL.Query().Get("level"); raw != "" {
		l := domain.LogLevel(raw)
		switch l {
		case domain.LevelDebug, domain.LevelInfo, domain.LevelWarn, domain.LevelError, domain.LevelFatal:
			level = &l
		default:
			h.funnel.Write(w, r, domain.WrapError(domain.ErrValidation, "invalid log level"))
			return
		}
	}

	logs, total, err := h.logs.List(r.Context(), h.querier, level, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(logs, total, params))
}

// CacheKeys handles GET /api/v1/admin/cache/keys?prefix=rate_limit: — a
// bounded scan, admin only.
func (h *AdminHandler) CacheKeys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		h.funnel.Write(w, r, domain.WrapError(domain.ErrValidation, "prefix query parameter is required"))
		return
	}

	keys, err := h.cache.ScanKeys(r.Context(), prefix, 500)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	_ = contract.WriteJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// SystemMetrics handles GET /api/v1/admin/metrics: the monitor snapshot.
func (h *AdminHandler) SystemMetrics(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Snapshot()
	_ = contract.WriteJSON(w, http.StatusOK, map[string]any{
		"started_at":       snap.StartedAt,
		"request_total":    snap.RequestTotal,
		"error_total":      snap.ErrorTotal,
		"avg_response_ms":  snap.AvgResponseMS,
		"peak_rss_bytes":   snap.PeakRSSBytes,
		"peak_cpu_percent": snap.PeakCPUPercent,
		"samples":          snap.Samples,
	})
}
