// Package person serves the people resource. People are mail identities
// harvested from patch submissions; the resource is read-only and, since
// it exposes email addresses, requires an authenticated account.
package person

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/internal/auth"
	"github.com/patchtrack/patchtrack/internal/errresponse"
	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/pagination"
	"github.com/patchtrack/patchtrack/internal/store"
)

// API bundles the dependencies of the people handlers.
type API struct {
	Store *store.Store
	Log   *zap.SugaredLogger
}

// PersonResponse is the response payload for the person data model.
type PersonResponse struct {
	*model.Person
}

func (rd *PersonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// RequireAccount rejects anonymous requests.
func (a *API) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			a.renderErr(w, r, errresponse.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List returns the window of known people.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	people, total, err := a.Store.ListPeople(pagination.FromRequest(r))
	if err != nil {
		a.Log.Errorw("listing people", "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	list := []render.Renderer{}
	for _, p := range people {
		list = append(list, &PersonResponse{Person: p})
	}

	if err := render.Render(w, r, pagination.NewEnvelope(total, list)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Get returns a single person.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "personID"), 10, 64)
	if err != nil {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}

	p, err := a.Store.GetPerson(id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}
	if err != nil {
		a.Log.Errorw("getting person", "id", id, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	if err := render.Render(w, r, &PersonResponse{Person: p}); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Forbidden rejects writes; people only change through mail ingestion.
func (a *API) Forbidden(w http.ResponseWriter, r *http.Request) {
	a.renderErr(w, r, errresponse.ErrForbidden)
}

func (a *API) renderErr(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		a.Log.Errorw("rendering error response", "err", err)
	}
}
