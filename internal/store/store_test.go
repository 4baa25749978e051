package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchtrack/patchtrack/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

type fixture struct {
	project *model.Project
	person  *model.Person
	patch   *model.Patch
	account *model.Account
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()

	project, err := s.CreateProject(&model.Project{
		LinkName: "linux-api", Name: "Linux API", ListID: "linux-api.vger",
		ListEmail: "linux-api@vger.kernel.org",
	})
	require.NoError(t, err)

	person, err := s.CreatePerson(&model.Person{Name: "A Developer", Email: "dev@example.com"})
	require.NoError(t, err)

	state, err := s.StateByName("New")
	require.NoError(t, err)

	patch, err := s.CreatePatch(&model.Patch{
		ProjectID: project.ID,
		MsgID:     "<1@example.com>",
		Name:      "[PATCH] fs: wake waiters",
		Submitter: person.ID,
		StateID:   state.ID,
		Hash:      "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Diff:      "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-x\n+y\n",
	})
	require.NoError(t, err)

	account, err := s.CreateAccount(&model.Account{
		Username: "maint", Email: "maint@example.com", Token: "tok-maint",
	})
	require.NoError(t, err)

	return fixture{project: project, person: person, patch: patch, account: account}
}

func TestOpenSeedsDefaultStates(t *testing.T) {
	s := testStore(t)

	states, err := s.States()
	require.NoError(t, err)
	require.Len(t, states, 10)
	assert.Equal(t, "New", states[0].Name)
	assert.True(t, states[0].ActionRequired)

	accepted, err := s.StateByName("Accepted")
	require.NoError(t, err)
	assert.False(t, accepted.ActionRequired)

	_, err = s.StateByName("Bogus")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchCRUD(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	got, err := s.GetPatch(f.patch.ID)
	require.NoError(t, err)
	assert.Equal(t, f.patch.Name, got.Name)
	assert.Equal(t, f.patch.Hash, got.Hash)
	assert.Nil(t, got.Delegate)

	byHash, err := s.GetPatchByHash(0, f.patch.Hash)
	require.NoError(t, err)
	assert.Equal(t, f.patch.ID, byHash.ID)

	byHash, err = s.GetPatchByHash(f.project.ID, f.patch.Hash)
	require.NoError(t, err)
	assert.Equal(t, f.patch.ID, byHash.ID)

	_, err = s.GetPatchByHash(0, "0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	accepted, err := s.StateByName("Accepted")
	require.NoError(t, err)

	ref := "f00dfeed"
	updated, err := s.UpdatePatch(f.patch.ID, PatchUpdate{
		StateID:   &accepted.ID,
		CommitRef: &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, accepted.ID, updated.StateID)
	assert.Equal(t, ref, updated.CommitRef)

	_, err = s.UpdatePatch(9999, PatchUpdate{CommitRef: &ref})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPatchesFilters(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	other, err := s.CreatePerson(&model.Person{Name: "Someone Else", Email: "other@example.com"})
	require.NoError(t, err)

	review, err := s.StateByName("Under Review")
	require.NoError(t, err)

	_, err = s.CreatePatch(&model.Patch{
		ProjectID: f.project.ID,
		MsgID:     "<2@example.com>",
		Name:      "[PATCH] second",
		Submitter: other.ID,
		StateID:   review.ID,
		Hash:      "cafebabecafebabecafebabecafebabecafebabe",
	})
	require.NoError(t, err)

	all, total, err := s.ListPatches(PatchFilter{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	byState, total, err := s.ListPatches(PatchFilter{State: "Under Review"}, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byState, 1)
	assert.Equal(t, "[PATCH] second", byState[0].Name)

	bySubmitter, _, err := s.ListPatches(PatchFilter{Submitter: "A Developer"}, Page{})
	require.NoError(t, err)
	require.Len(t, bySubmitter, 1)
	assert.Equal(t, f.patch.ID, bySubmitter[0].ID)

	byProject, _, err := s.ListPatches(PatchFilter{Project: "linux-api"}, Page{})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	none, total, err := s.ListPatches(PatchFilter{Project: "no-such"}, Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	byHash, _, err := s.ListPatches(PatchFilter{Hash: f.patch.Hash}, Page{})
	require.NoError(t, err)
	require.Len(t, byHash, 1)
	assert.Equal(t, f.patch.ID, byHash[0].ID)

	since, _, err := s.ListPatches(PatchFilter{Since: time.Now().UTC().Add(time.Hour)}, Page{})
	require.NoError(t, err)
	assert.Empty(t, since)

	until, total, err := s.ListPatches(PatchFilter{Until: time.Now().UTC().Add(time.Hour)}, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, until, 2)
}

func TestListPatchesPagination(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	for i := 0; i < 5; i++ {
		_, err := s.CreatePatch(&model.Patch{
			ProjectID: f.project.ID,
			MsgID:     "<extra-" + string(rune('a'+i)) + "@example.com>",
			Name:      "extra",
			Submitter: f.person.ID,
			StateID:   f.patch.StateID,
		})
		require.NoError(t, err)
	}

	page1, total, err := s.ListPatches(PatchFilter{}, Page{Offset: 0, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, page1, 4)

	page2, total, err := s.ListPatches(PatchFilter{}, Page{Offset: 4, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestChecksAndCombinedState(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	combined, err := s.CombinedCheckState(f.patch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatePending, combined)

	_, err = s.CreateCheck(&model.Check{
		PatchID: f.patch.ID, UserID: f.account.ID,
		State: model.CheckStateSuccess, Context: "build",
	})
	require.NoError(t, err)

	combined, err = s.CombinedCheckState(f.patch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStateSuccess, combined)

	_, err = s.CreateCheck(&model.Check{
		PatchID: f.patch.ID, UserID: f.account.ID,
		State: model.CheckStateFail, Context: "tests",
	})
	require.NoError(t, err)

	combined, err = s.CombinedCheckState(f.patch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStateFail, combined)

	// A newer result on the failing context supersedes the failure.
	_, err = s.CreateCheck(&model.Check{
		PatchID: f.patch.ID, UserID: f.account.ID,
		State: model.CheckStateSuccess, Context: "tests",
	})
	require.NoError(t, err)

	combined, err = s.CombinedCheckState(f.patch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStateSuccess, combined)

	checks, err := s.ListChecks(f.patch.ID)
	require.NoError(t, err)
	assert.Len(t, checks, 3)

	got, err := s.GetCheck(f.patch.ID, checks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "build", got.Context)

	_, err = s.GetCheck(f.patch.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountsAndMaintainers(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	got, err := s.AccountByToken("tok-maint")
	require.NoError(t, err)
	assert.Equal(t, f.account.ID, got.ID)

	_, err = s.AccountByToken("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.IsMaintainer(f.project.ID, f.account.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddMaintainer(f.project.ID, f.account.ID))
	require.NoError(t, s.AddMaintainer(f.project.ID, f.account.ID)) // idempotent

	ok, err = s.IsMaintainer(f.project.ID, f.account.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPeople(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	got, err := s.GetPerson(f.person.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", got.Email)

	// Same email again updates the name instead of duplicating.
	again, err := s.CreatePerson(&model.Person{Name: "A. Developer", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Equal(t, f.person.ID, again.ID)

	people, total, err := s.ListPeople(Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, people, 1)
}

func TestProjects(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	byLink, err := s.ProjectByLinkName("linux-api")
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, byLink.ID)

	name := "Renamed"
	updated, err := s.UpdateProject(f.project.ID, ProjectUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	projects, total, err := s.ListProjects(Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, projects, 1)
}

func TestBundles(t *testing.T) {
	s := testStore(t)
	f := seed(t, s)

	b, err := s.CreateBundle(&model.Bundle{
		OwnerID: f.account.ID,
		Project: f.project.ID,
		Name:    "for-next",
		Public:  true,
		Patches: []int64{f.patch.ID},
	})
	require.NoError(t, err)

	got, err := s.GetBundle(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.patch.ID}, got.Patches)

	private, err := s.CreateBundle(&model.Bundle{
		OwnerID: f.account.ID, Project: f.project.ID, Name: "wip",
	})
	require.NoError(t, err)

	// Anonymous listing sees only the public bundle.
	visible, total, err := s.ListBundles(0, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, b.ID, visible[0].ID)

	// The owner sees both.
	mine, total, err := s.ListBundles(f.account.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 2)
	_ = private
}
