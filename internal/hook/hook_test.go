package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/client"
	"github.com/patchtrack/patchtrack/internal/hash"
)

// diffFor builds a distinct valid diff per revision so each commit hashes
// to its own patch.
func diffFor(rev string) string {
	return fmt.Sprintf(`--- a/file
+++ b/file
@@ -1,1 +1,1 @@
-old
+new %s
`, rev)
}

type fakeGit struct {
	revs    map[string][]string // "old..new" -> revisions
	showErr map[string]error
}

func (g *fakeGit) RevList(ctx context.Context, oldrev, newrev, refname string) ([]string, error) {
	revs, ok := g.revs[oldrev+".."+newrev]
	if !ok {
		return nil, errors.New("unknown range")
	}

	return revs, nil
}

func (g *fakeGit) Show(ctx context.Context, rev string) (string, error) {
	if err := g.showErr[rev]; err != nil {
		return "", err
	}

	return diffFor(rev), nil
}

type update struct {
	id    int64
	state string
	ref   string
}

type fakeService struct {
	byHash     map[string]int64
	updates    []update
	lookupErr  map[string]error
	updateErrs map[int64]error
}

func (s *fakeService) PatchByHash(ctx context.Context, h string) (*client.Patch, error) {
	if err := s.lookupErr[h]; err != nil {
		return nil, err
	}
	id, ok := s.byHash[h]
	if !ok {
		return nil, client.ErrNotFound
	}

	return &client.Patch{ID: id, Hash: h}, nil
}

func (s *fakeService) UpdatePatch(ctx context.Context, id int64, u client.PatchUpdate) (*client.Patch, error) {
	if err := s.updateErrs[id]; err != nil {
		return nil, err
	}

	up := update{id: id}
	if u.StateName != nil {
		up.state = *u.StateName
	}
	if u.CommitRef != nil {
		up.ref = *u.CommitRef
	}
	s.updates = append(s.updates, up)

	return &client.Patch{ID: id}, nil
}

func hashFor(t *testing.T, rev string) string {
	t.Helper()
	h, err := hash.Diff(diffFor(rev))
	require.NoError(t, err)

	return h
}

func newProcessor(git Git, svc PatchService) *Processor {
	return &Processor{
		Git:       git,
		Patches:   svc,
		RefStates: map[string]string{"refs/heads/master": "Accepted"},
		Log:       zap.NewNop().Sugar(),
	}
}

func TestRunUpdatesEachCommitOldestFirst(t *testing.T) {
	git := &fakeGit{revs: map[string][]string{
		"aaa..bbb": {"rev1", "rev2", "rev3"},
	}}
	svc := &fakeService{byHash: map[string]int64{
		hashFor(t, "rev1"): 11,
		hashFor(t, "rev2"): 12,
		hashFor(t, "rev3"): 13,
	}}

	proc := newProcessor(git, svc)
	err := proc.Run(context.Background(), strings.NewReader("aaa bbb refs/heads/master\n"))
	require.NoError(t, err)

	require.Len(t, svc.updates, 3)
	assert.Equal(t, update{id: 11, state: "Accepted", ref: "rev1"}, svc.updates[0])
	assert.Equal(t, update{id: 12, state: "Accepted", ref: "rev2"}, svc.updates[1])
	assert.Equal(t, update{id: 13, state: "Accepted", ref: "rev3"}, svc.updates[2])
}

func TestRunSkipsUnmappedRef(t *testing.T) {
	git := &fakeGit{revs: map[string][]string{}}
	svc := &fakeService{}

	proc := newProcessor(git, svc)
	err := proc.Run(context.Background(), strings.NewReader("aaa bbb refs/heads/topic\n"))
	require.NoError(t, err)
	assert.Empty(t, svc.updates)
}

func TestRunContinuesPastFailingCommits(t *testing.T) {
	git := &fakeGit{
		revs:    map[string][]string{"aaa..bbb": {"rev1", "rev2", "rev3", "rev4"}},
		showErr: map[string]error{"rev2": errors.New("bad object")},
	}
	svc := &fakeService{
		byHash: map[string]int64{
			hashFor(t, "rev1"): 11,
			// rev3 unknown: lookup fails
			hashFor(t, "rev4"): 14,
		},
		updateErrs: map[int64]error{},
	}

	proc := newProcessor(git, svc)
	err := proc.Run(context.Background(), strings.NewReader("aaa bbb refs/heads/master\n"))
	require.NoError(t, err)

	// rev2 failed to show, rev3 had no matching patch; the rest went through.
	require.Len(t, svc.updates, 2)
	assert.Equal(t, int64(11), svc.updates[0].id)
	assert.Equal(t, int64(14), svc.updates[1].id)
}

func TestRunContinuesPastUpdateFailure(t *testing.T) {
	git := &fakeGit{revs: map[string][]string{"aaa..bbb": {"rev1", "rev2"}}}
	svc := &fakeService{
		byHash: map[string]int64{
			hashFor(t, "rev1"): 11,
			hashFor(t, "rev2"): 12,
		},
		updateErrs: map[int64]error{11: errors.New("boom")},
	}

	proc := newProcessor(git, svc)
	err := proc.Run(context.Background(), strings.NewReader("aaa bbb refs/heads/master\n"))
	require.NoError(t, err)

	require.Len(t, svc.updates, 1)
	assert.Equal(t, int64(12), svc.updates[0].id)
}

func TestRunSkipsDeletedRef(t *testing.T) {
	git := &fakeGit{revs: map[string][]string{}}
	svc := &fakeService{}

	proc := newProcessor(git, svc)
	line := "aaa " + ZeroRev + " refs/heads/master\n"
	err := proc.Run(context.Background(), strings.NewReader(line))
	require.NoError(t, err)
	assert.Empty(t, svc.updates)
}

func TestRunMalformedLine(t *testing.T) {
	git := &fakeGit{revs: map[string][]string{"aaa..bbb": {"rev1"}}}
	svc := &fakeService{byHash: map[string]int64{hashFor(t, "rev1"): 11}}

	proc := newProcessor(git, svc)
	input := "aaa bbb\naaa bbb refs/heads/master\n"
	err := proc.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, svc.updates, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	git := &fakeGit{revs: map[string][]string{"aaa..bbb": {"rev1"}}}
	svc := &fakeService{byHash: map[string]int64{hashFor(t, "rev1"): 11}}

	proc := newProcessor(git, svc)
	err := proc.Run(ctx, strings.NewReader("aaa bbb refs/heads/master\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.updates)
}
