// Package handler contains the chi HTTP handlers for the public API surface.
package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/usecase/shorten"
)

// CreateURLRequest is the POST /api/v1/url payload.
type CreateURLRequest struct {
	URL        string     `json:"url" validate:"required,max=2048"`
	Password   string     `json:"password,omitempty" validate:"omitempty,min=4,max=128"`
	Title      *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	Descr      *string    `json:"descr,omitempty" validate:"omitempty,max=1024"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsFavorite bool       `json:"is_favorite,omitempty"`
}

// URLResponse is the canonical short-URL representation.
type URLResponse struct {
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Title       *string    `json:"title,omitempty"`
	Descr       *string    `json:"descr,omitempty"`
	Clicks      int64      `json:"clicks"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	QRURL       string     `json:"qr_url,omitempty"`
	Reused      bool       `json:"reused,omitempty"`
}

// URLHandler serves the shorten, stats and ownership endpoints.
type URLHandler struct {
	shortener *shorten.Service
	urls      domain.URLRepo
	querier   domain.Querier
	funnel    *errorfunnel.Funnel
	baseURL   string
}

// NewURLHandler creates a URLHandler.
func NewURLHandler(shortener *shorten.Service, urls domain.URLRepo, querier domain.Querier, funnel *errorfunnel.Funnel, baseURL string) *URLHandler {
	return &URLHandler{
		shortener: shortener,
		urls:      urls,
		querier:   querier,
		funnel:    funnel,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (h *URLHandler) toResponse(u *domain.ShortURL, qrURL string, reused bool) URLResponse {
	return URLResponse{
		ShortCode:   u.ShortCode,
		ShortURL:    h.baseURL + "/api/v1/" + u.ShortCode,
		OriginalURL: u.OriginalURL,
		Title:       u.Title,
		Descr:       u.Descr,
		Clicks:      u.Clicks,
		ExpiresAt:   u.ExpiresAt,
		CreatedAt:   u.CreatedAt,
		QRURL:       qrURL,
		Reused:      reused,
	}
}

// Create handles POST /api/v1/url.
func (h *URLHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateURLRequest
	if validationErrors := contract.ValidateRequestBody(r, &req); len(validationErrors) > 0 {
		h.funnel.WriteValidation(w, r, validationErrors)
		return
	}

	var userID string
	if auth := app.GetAuthContext(r.Context()); auth != nil {
		userID = auth.UserID
	}

	result, err := h.shortener.Shorten(r.Context(), shorten.CreateRequest{
		URL:        req.URL,
		Password:   req.Password,
		Title:      req.Title,
		Descr:      req.Descr,
		ExpiresAt:  req.ExpiresAt,
		IsFavorite: req.IsFavorite,
	}, userID)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	_ = contract.WriteJSON(w, http.StatusOK, h.toResponse(result.URL, result.QRURL, result.Reused))
}

// Stats handles GET /api/v1/url/{short_code}/stats.
func (h *URLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "short_code")

	stats, err := h.urls.Stats(r.Context(), h.querier, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.funnel.Write(w, r, domain.WrapError(domain.ErrNotFound, "short code not found"))
			return
		}
		h.funnel.Write(w, r, err)
		return
	}

	_ = contract.WriteJSON(w, http.StatusOK, map[string]any{
		"short_code":    stats.ShortCode,
		"original_url":  stats.OriginalURL,
		"total_clicks":  stats.TotalClicks,
		"created_at":    stats.CreatedAt,
		"expires_at":    stats.ExpiresAt,
		"last_click_at": stats.LastClickAt,
		"top_countries": stats.TopCountries,
		"top_browsers":  stats.TopBrowsers,
	})
}

// ListMine handles GET /api/v1/user/urls.
func (h *URLHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	auth := app.GetAuthContext(r.Context())

	params := contract.ParseListParams(r.URL.Query())
	urls, total, err := h.urls.ListForUser(r.Context(), h.querier, auth.UserID, params)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	results := make([]URLResponse, 0, len(urls))
	for _, u := range urls {
		results = append(results, h.toResponse(u, "", false))
	}
	_ = contract.WriteJSON(w, http.StatusOK, contract.NewPage(results, total, params))
}

// DeleteURLRequest is the DELETE /api/v1/user/url payload.
type DeleteURLRequest struct {
	ShortCode string `json:"short_code" validate:"required,len=7,alphanum"`
	// Hard removes the row entirely; the default soft-deletes.
	Hard bool `json:"hard,omitempty"`
}

// DeleteMine handles DELETE /api/v1/user/url: detaches ownership and
// soft-deletes (or hard-deletes) the owned URL.
func (h *URLHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	auth := app.GetAuthContext(r.Context())

	var req DeleteURLRequest
	if validationErrors := contract.ValidateRequestBody(r, &req); len(validationErrors) > 0 {
		h.funnel.WriteValidation(w, r, validationErrors)
		return
	}

	u, err := h.urls.GetByShortCode(r.Context(), h.querier, req.ShortCode)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	ownerID, owned, err := h.urls.OwnerOf(r.Context(), h.querier, u.ID)
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	if !owned || ownerID != auth.UserID {
		h.funnel.Write(w, r, domain.WrapError(domain.ErrNotFound, "short code not found"))
		return
	}

	if err := h.urls.DetachOwner(r.Context(), h.querier, u.ID, auth.UserID); err != nil {
		h.funnel.Write(w, r, err)
		return
	}
	if req.Hard {
		err = h.urls.Delete(r.Context(), h.querier, u.ID)
	} else {
		err = h.urls.Deactivate(r.Context(), h.querier, u.ID)
	}
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
