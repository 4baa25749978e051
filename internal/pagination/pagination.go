// Package pagination implements the page/page_size listing envelope used
// across the API.
package pagination

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/patchtrack/patchtrack/internal/store"
)

// DefaultPageSize matches the API's stock page size; clients can override
// it with the page_size query parameter.
const DefaultPageSize = 30

// MaxPageSize caps client-requested page sizes.
const MaxPageSize = 250

// FromRequest reads the page and page_size query parameters.
func FromRequest(r *http.Request) store.Page {
	size := DefaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		size = v
		if size > MaxPageSize {
			size = MaxPageSize
		}
	}

	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}

	return store.Page{Offset: (page - 1) * size, Limit: size}
}

// Envelope is the {count, results} wrapper around list responses.
type Envelope struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

func (e *Envelope) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// NewEnvelope builds the wrapper; a nil results slice renders as [].
func NewEnvelope(count int, results []render.Renderer) *Envelope {
	if results == nil {
		results = []render.Renderer{}
	}

	return &Envelope{Count: count, Results: results}
}
