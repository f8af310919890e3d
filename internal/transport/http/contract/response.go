package contract

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// DataResponse is a generic wrapper for success responses.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Page is the pagination envelope returned by every list endpoint.
type Page[T any] struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	Results []T   `json:"results"`
}

// NewPage assembles the envelope for one result page.
func NewPage[T any](results []T, total int64, p domain.ListParams) Page[T] {
	p = p.Normalize()
	if results == nil {
		results = []T{}
	}
	return Page[T]{
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		Pages:   p.Pages(total),
		Results: results,
	}
}

// ParseListParams reads limit/offset query parameters. Out-of-range values
// clamp to the contract's defaults rather than erroring.
func ParseListParams(query url.Values) domain.ListParams {
	var p domain.ListParams
	if v, err := strconv.Atoi(query.Get("limit")); err == nil {
		p.Limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil {
		p.Offset = v
	}
	return p.Normalize()
}
