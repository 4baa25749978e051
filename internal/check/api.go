// Package check serves the per-patch checks resource. Checks are
// append-only: CI systems post results, nobody rewrites history, so update
// and delete are rejected.
package check

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/internal/auth"
	"github.com/patchtrack/patchtrack/internal/checkpayload"
	"github.com/patchtrack/patchtrack/internal/errresponse"
	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/pagination"
	"github.com/patchtrack/patchtrack/internal/patch"
	"github.com/patchtrack/patchtrack/internal/store"
)

// API bundles the dependencies of the checks handlers.
type API struct {
	Store *store.Store
	Auth  auth.Authenticator
	Log   *zap.SugaredLogger
}

// List returns all checks recorded against the patch.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	p := patch.FromContext(r.Context())

	checks, err := a.Store.ListChecks(p.ID)
	if err != nil {
		a.Log.Errorw("listing checks", "patch", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	envelope := pagination.NewEnvelope(len(checks), checkpayload.NewCheckListResponse(checks))
	if err := render.Render(w, r, envelope); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Get returns a single check on the patch.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	p := patch.FromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "checkID"), 10, 64)
	if err != nil {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}

	c, err := a.Store.GetCheck(p.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderErr(w, r, errresponse.ErrNotFound)
		return
	}
	if err != nil {
		a.Log.Errorw("getting check", "patch", p.ID, "check", id, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	if err := render.Render(w, r, checkpayload.NewCheckResponse(c)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Create records a check. Only accounts that may edit the patch can post
// one; the acting account is recorded as the check's user.
func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	p := patch.FromContext(r.Context())

	account := auth.FromContext(r.Context())
	ok, err := auth.CanEditPatch(a.Auth, account, p)
	if err != nil {
		a.Log.Errorw("checking check permissions", "patch", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}
	if !ok {
		a.renderErr(w, r, errresponse.ErrForbidden)
		return
	}

	data := &checkpayload.CheckRequest{}
	if err := render.Bind(r, data); err != nil {
		a.renderErr(w, r, errresponse.ErrInvalidRequest(err))
		return
	}

	c, err := a.Store.CreateCheck(&model.Check{
		PatchID:     p.ID,
		UserID:      account.ID,
		State:       data.State,
		TargetURL:   data.TargetURL,
		Description: data.Description,
		Context:     data.Context,
	})
	if err != nil {
		a.Log.Errorw("creating check", "patch", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	a.Log.Infow("check recorded", "patch", p.ID, "check", c.ID,
		"context", c.Context, "state", c.State)

	render.Status(r, http.StatusCreated)
	if err := render.Render(w, r, checkpayload.NewCheckResponse(c)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Combined returns the patch's combined check state.
func (a *API) Combined(w http.ResponseWriter, r *http.Request) {
	p := patch.FromContext(r.Context())

	state, err := a.Store.CombinedCheckState(p.ID)
	if err != nil {
		a.Log.Errorw("combining check state", "patch", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	render.JSON(w, r, map[string]string{"state": state})
}

// Forbidden rejects check updates and deletions.
func (a *API) Forbidden(w http.ResponseWriter, r *http.Request) {
	a.renderErr(w, r, errresponse.ErrForbidden)
}

func (a *API) renderErr(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		a.Log.Errorw("rendering error response", "err", err)
	}
}
