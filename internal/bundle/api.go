// Package bundle serves read access to bundles: public ones for everyone,
// private ones only to their owner.
package bundle

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

// API bundles the dependencies of the bundles handlers.
type API struct {
	Store *store.Store
	Log   *zap.SugaredLogger
}

// BundleResponse is the response payload for the bundle data model.
type BundleResponse struct {
	*model.Bundle
}

func (rd *BundleResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// List returns bundles visible to the caller.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if account := auth.FromContext(r.Context()); account != nil {
		accountID = account.ID
	}

	bundles, total, err := a.Store.ListBundles(accountID, pagination.FromRequest(r))
	if err != nil {
		a.Log.Errorw("listing bundles", "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	list := []render.Renderer{}
	for _, b := range bundles {
		list = append(list, &BundleResponse{Bundle: b})
	}

	if err := render.Render(w, r, pagination.NewEnvelope(total, list)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Get returns a single bundle if the caller may see it.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bundleID"), 10, 64)
	if err != nil {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}

	b, err := a.Store.GetBundle(id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}
	if err != nil {
		a.Log.Errorw("getting bundle", "id", id, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	account := auth.FromContext(r.Context())
	if !b.Public && (account == nil || account.ID != b.OwnerID) {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}

	if err := render.Render(w, r, &BundleResponse{Bundle: b}); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

func (a *API) renderErr(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		a.Log.Errorw("rendering error response", "err", err)
	}
}
