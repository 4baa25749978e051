package patch

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/patchtrack/patchtrack/internal/errresponse"
	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/store"
)

type ctxKey int

const patchKey ctxKey = iota

// Ctx middleware is used to load a Patch object from the URL parameters
// passed through as the request. In case the Patch could not be found, we
// stop here and return a 404.
func (a *API) Ctx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "patchID"), 10, 64)
		if err != nil {
			a.renderErr(w, r, errresponse.ErrNotFound)
			return
		}

		patch, err := a.Store.GetPatch(id)
		if errors.Is(err, store.ErrNotFound) {
			a.renderErr(w, r, errresponse.ErrNotFound)
			return
		}
		if err != nil {
			a.Log.Errorw("loading patch", "id", id, "err", err)
			a.renderErr(w, r, errresponse.ErrInternal(err))
			return
		}

		ctx := context.WithValue(r.Context(), patchKey, patch)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the patch loaded by Ctx. Handlers registered below
// the middleware can assume it is present.
func FromContext(ctx context.Context) *model.Patch {
	return ctx.Value(patchKey).(*model.Patch)
}

func (a *API) renderErr(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		a.Log.Errorw("rendering error response", "err", err)
	}
}
