// Package project serves the projects resource. Projects are provisioned
// out of band; the API lets maintainers adjust metadata but never create
// or remove projects.
package project

import (
	"context"
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

// API bundles the dependencies of the projects handlers.
type API struct {
	Store *store.Store
	Auth  auth.Authenticator
	Log   *zap.SugaredLogger
}

type ctxKey int

const projectKey ctxKey = iota

// ProjectResponse is the response payload for the project data model.
type ProjectResponse struct {
	*model.Project
}

func (rd *ProjectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// ProjectRequest is the PATCH body for a project.
type ProjectRequest struct {
	LinkName  *string `json:"linkname,omitempty"`
	Name      *string `json:"name,omitempty"`
	ListID    *string `json:"listid,omitempty"`
	ListEmail *string `json:"listemail,omitempty"`
	WebURL    *string `json:"web_url,omitempty"`
	SCMURL    *string `json:"scm_url,omitempty"`
}

func (p *ProjectRequest) Bind(r *http.Request) error {
	if p.LinkName == nil && p.Name == nil && p.ListID == nil &&
		p.ListEmail == nil && p.WebURL == nil && p.SCMURL == nil {
		return errors.New("no updatable project fields given")
	}

	return nil
}

// Ctx loads the project named in the URL onto the request context.
func (a *API) Ctx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
		if err != nil {
			a.renderErr(w, r, errresponse.ErrNotFound)
			return
		}

		p, err := a.Store.GetProject(id)
		if errors.Is(err, store.ErrNotFound) {
			a.renderErr(w, r, errresponse.ErrNotFound)
			return
		}
		if err != nil {
			a.Log.Errorw("loading project", "id", id, "err", err)
			a.renderErr(w, r, errresponse.ErrInternal(err))
			return
		}

		ctx := context.WithValue(r.Context(), projectKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func fromContext(ctx context.Context) *model.Project {
	return ctx.Value(projectKey).(*model.Project)
}

// List returns the window of projects.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	projects, total, err := a.Store.ListProjects(pagination.FromRequest(r))
	if err != nil {
		a.Log.Errorw("listing projects", "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	list := []render.Renderer{}
	for _, p := range projects {
		list = append(list, &ProjectResponse{Project: p})
	}

	if err := render.Render(w, r, pagination.NewEnvelope(total, list)); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Get returns a single project.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	p := fromContext(r.Context())

	if err := render.Render(w, r, &ProjectResponse{Project: p}); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Update applies a partial update; maintainers only.
func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	p := fromContext(r.Context())

	account := auth.FromContext(r.Context())
	ok, err := auth.CanEditProject(a.Auth, account, p.ID)
	if err != nil {
		a.Log.Errorw("checking project permissions", "project", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}
	if !ok {
		a.renderErr(w, r, errresponse.ErrForbidden)
		return
	}

	data := &ProjectRequest{}
	if err := render.Bind(r, data); err != nil {
		a.renderErr(w, r, errresponse.ErrInvalidRequest(err))
		return
	}

	updated, err := a.Store.UpdateProject(p.ID, store.ProjectUpdate{
		LinkName:  data.LinkName,
		Name:      data.Name,
		ListID:    data.ListID,
		ListEmail: data.ListEmail,
		WebURL:    data.WebURL,
		SCMURL:    data.SCMURL,
	})
	if err != nil {
		a.Log.Errorw("updating project", "project", p.ID, "err", err)
		a.renderErr(w, r, errresponse.ErrInternal(err))
		return
	}

	if err := render.Render(w, r, &ProjectResponse{Project: updated}); err != nil {
		a.renderErr(w, r, errresponse.ErrRender(err))
	}
}

// Forbidden rejects project creation and deletion.
func (a *API) Forbidden(w http.ResponseWriter, r *http.Request) {
	a.renderErr(w, r, errresponse.ErrForbidden)
}

func (a *API) renderErr(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		a.Log.Errorw("rendering error response", "err", err)
	}
}
