package check_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/internal/auth"
	"github.com/patchtrack/patchtrack/internal/check"
	"github.com/patchtrack/patchtrack/internal/model"
	"github.com/patchtrack/patchtrack/internal/patch"
	"github.com/patchtrack/patchtrack/internal/store"
)

type env struct {
	srv   *httptest.Server
	store *store.Store
	patch *model.Patch
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	project, err := st.CreateProject(&model.Project{
		LinkName: "p", Name: "P", ListID: "p.list", ListEmail: "p@example.com",
	})
	require.NoError(t, err)

	person, err := st.CreatePerson(&model.Person{Name: "Dev", Email: "dev@example.com"})
	require.NoError(t, err)

	state, err := st.StateByName("New")
	require.NoError(t, err)

	p, err := st.CreatePatch(&model.Patch{
		ProjectID: project.ID, MsgID: "<1@example.com>", Name: "[PATCH] x",
		Submitter: person.ID, StateID: state.ID,
	})
	require.NoError(t, err)

	maintainer, err := st.CreateAccount(&model.Account{
		Username: "maint", Email: "maint@example.com", Token: "tok-maint",
	})
	require.NoError(t, err)
	require.NoError(t, st.AddMaintainer(project.ID, maintainer.ID))

	_, err = st.CreateAccount(&model.Account{
		Username: "user", Email: "user@example.com", Token: "tok-user",
	})
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	patchAPI := &patch.API{Store: st, Auth: st, Log: log}
	checkAPI := &check.API{Store: st, Auth: st, Log: log}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(auth.Middleware(st))
	r.Route("/api/1.0/patches/{patchID}", func(r chi.Router) {
		r.Use(patchAPI.Ctx)
		r.Get("/check", checkAPI.Combined)
		r.Route("/checks", func(r chi.Router) {
			r.Get("/", checkAPI.List)
			r.Post("/", checkAPI.Create)
			r.Get("/{checkID}", checkAPI.Get)
			r.Patch("/{checkID}", checkAPI.Forbidden)
			r.Delete("/{checkID}", checkAPI.Forbidden)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &env{srv: srv, store: st, patch: p}
}

func (e *env) request(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

const checkBody = `{"state":"success","target_url":"http://ci.example.com/1","description":"build ok","context":"build"}`

func TestCreateAndListChecks(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodGet, "/api/1.0/patches/1/checks/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var envl struct {
		Count   int                      `json:"count"`
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envl))
	assert.Zero(t, envl.Count)

	resp = e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/", "tok-maint", checkBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "success", created["state"])
	assert.Equal(t, "build", created["context"])

	resp = e.request(t, http.MethodGet, "/api/1.0/patches/1/checks/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envl.Results = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envl))
	assert.Equal(t, 1, envl.Count)
	require.Len(t, envl.Results, 1)
	assert.Equal(t, "http://ci.example.com/1", envl.Results[0]["target_url"])
}

func TestCreateCheckPermissions(t *testing.T) {
	e := newEnv(t)

	// anonymous
	resp := e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/", "", checkBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// authenticated but not a maintainer of the patch's project
	resp = e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/", "tok-user", checkBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckInvalidState(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/",
		"tok-maint", `{"state":"amazing","context":"build"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckUpdateDeleteRejected(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/", "tok-maint", checkBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.request(t, http.MethodPatch, "/api/1.0/patches/1/checks/1",
		"tok-maint", `{"target_url":"fail"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.request(t, http.MethodDelete, "/api/1.0/patches/1/checks/1", "tok-maint", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCombinedState(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodGet, "/api/1.0/patches/1/check/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "pending", got["state"])

	resp = e.request(t, http.MethodPost, "/api/1.0/patches/1/checks/", "tok-maint",
		`{"state":"warning","context":"style"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.request(t, http.MethodGet, "/api/1.0/patches/1/check/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "warning", got["state"])
}
