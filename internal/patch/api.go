// Package patch serves the patches resource: filtered listings, single
// patch retrieval, state updates by maintainers, and the mbox rendering.
// Patches enter the system through mail ingestion, never through the API,
// so creation and deletion are rejected outright.
package patch

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/internal/auth"
	"github.com/patchtrack/patchtrack/internal/errresponse"
	"github.com/patchtrack/patchtrack/internal/mbox"
	"github.com/patchtrack/patchtrack/internal/pagination"
	"github.com/patchtrack/patchtrack/internal/patchpayload"
	"github.com/patchtrack/patchtrack/internal/store"
)

// API bundles the dependencies of the patches handlers.
type API struct {
	Store *store.Store
	Auth  auth.Authenticator
	Log   *zap.SugaredLogger
}

// Listings support the following query filters:
//   - project=<project-linkname>
//   - since=<RFC 3339 timestamp>
//   - until=<RFC 3339 timestamp>
//   - state=<state-name>
//   - submitter=<name>
//   - delegate=<name>
//   - hash=<patch-hash>
//
// eg: GET /api/1.0/patches/?project=p&since=2016-01-01T00:00:00Z&state=New
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.PatchFilter{
		Project:   q.Get("project"),
		Submitter: q.Get("submitter"),
		Delegate:  q.Get("delegate"),
		State:     q.Get("state"),
		Hash:      q.Get("hash"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.renderErr(w, r, errresponse.ErrInvalidRequest(err))
			return
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.renderErr(w, r, errresponse.ErrInvalidRequest(err))
			return
		}
		filter.Until = t
	}

	patches, total, err := a.Store.ListPatches(filter, pagination.FromRequest(r))
	if err != nil {
		a.Log.Errorw("listing patches", "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	envelope := pagination.NewEnvelope(total, patchpayload.NewPatchListResponse(patches))
	if err := render.Render(w, r, envelope); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Get returns the specific Patch loaded by the Ctx middleware.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	patch := FromContext(r.Context())

	if err := render.Render(w, r, patchpayload.NewPatchResponse(patch)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Update applies a partial update to a patch. Only accounts that may edit
// the patch (maintainers of its project, superusers) get through.
func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	patch := FromContext(r.Context())

	account := auth.FromContext(r.Context())
	ok, err := auth.CanEditPatch(a.Auth, account, patch)
	if err != nil {
		a.Log.Errorw("checking patch permissions", "patch", patch.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}
	if !ok {
		a.renderErr(w, r, errresponse.ErrForbidden)
		return
	}

	data := &patchpayload.PatchRequest{}
	if err := render.Bind(r, data); err != nil {
		a.renderErr(w, r, errresponse.ErrInvalidRequest(err))
		return
	}

	update := store.PatchUpdate{
		StateID:   data.State,
		Delegate:  data.Delegate,
		CommitRef: data.CommitRef,
	}
	if data.StateName != nil {
		state, err := a.Store.StateByName(*data.StateName)
		if errors.Is(err, store.ErrNotFound) {
			a.renderErr(w, r, errresponse.ErrInvalidRequest(
				errors.New("unknown state name "+*data.StateName)))
			return
		}
		if err != nil {
			a.Log.Errorw("resolving state name", "name", *data.StateName, "err", err)
			a.renderErr(w, r, errresponse.ErrInternal(err))
			return
		}
		update.StateID = &state.ID
	}

	updated, err := a.Store.UpdatePatch(patch.ID, update)
	if err != nil {
		a.Log.Errorw("updating patch", "patch", patch.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	a.Log.Infow("patch updated", "patch", updated.ID, "state", updated.StateID,
		"commit_ref", updated.CommitRef)

	if err := render.Render(w, r, patchpayload.NewPatchResponse(updated)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Forbidden rejects operations the API never allows (patch create/delete).
func (a *API) Forbidden(w http.ResponseWriter, r *http.Request) {
	a.renderErr(w, r, errresponse.ErrForbidden)
}

// Mbox serves the patch as an mbox-formatted mail message.
func (a *API) Mbox(w http.ResponseWriter, r *http.Request) {
	patch := FromContext(r.Context())

	submitter, err := a.Store.GetPerson(patch.Submitter)
	if err != nil {
		a.Log.Errorw("loading submitter", "patch", patch.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(mbox.Render(patch, submitter))); err != nil {
		a.Log.Errorw("writing mbox", "patch", patch.ID, "err", err)
	}
}
