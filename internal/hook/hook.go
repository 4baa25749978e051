// Package hook implements post-receive processing: pushed commits are
// matched back to tracked patches by content hash and moved to the state
// configured for the ref they landed on.
package hook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/patchtrack/patchtrack/client"
	"github.com/patchtrack/patchtrack/internal/hash"
)

// Git is the repository access the processor needs.
type Git interface {
	RevList(ctx context.Context, oldrev, newrev, refname string) ([]string, error)
	Show(ctx context.Context, rev string) (string, error)
}

// PatchService is the slice of the API client the processor uses.
type PatchService interface {
	PatchByHash(ctx context.Context, h string) (*client.Patch, error)
	UpdatePatch(ctx context.Context, id int64, u client.PatchUpdate) (*client.Patch, error)
}

// Processor drives one post-receive run. No per-commit failure is fatal:
// a commit that cannot be hashed, matched or updated is logged and skipped
// so one bad commit never blocks the rest of a push.
type Processor struct {
	Git       Git
	Patches   PatchService
	RefStates map[string]string
	Log       *zap.SugaredLogger
}

// Run reads "oldrev newrev refname" triples from r, one per line, and
// processes each ref in turn. Cancelling ctx stops the run between commits.
func (p *Processor) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			p.Log.Errorw("malformed ref update line", "line", line)
			continue
		}

		p.processRef(ctx, fields[0], fields[1], fields[2])

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("hook: reading ref updates: %w", err)
	}

	return nil
}

func (p *Processor) processRef(ctx context.Context, oldrev, newrev, refname string) {
	state, ok := p.RefStates[refname]
	if !ok {
		p.Log.Infow("no state mapping for ref, skipping", "ref", refname)
		return
	}

	if newrev == ZeroRev {
		p.Log.Infow("ref deleted, nothing to do", "ref", refname)
		return
	}

	revs, err := p.Git.RevList(ctx, oldrev, newrev, refname)
	if err != nil {
		p.Log.Errorw("listing commits", "ref", refname, "err", err)
		return
	}

	count := 0
	for _, rev := range revs {
		if ctx.Err() != nil {
			p.Log.Warnw("interrupted, stopping", "ref", refname, "updated", count)
			return
		}

		id, err := p.processCommit(ctx, rev, state)
		if err != nil {
			p.Log.Errorw("commit skipped", "rev", rev, "err", err)
			continue
		}

		p.Log.Infow("patch updated", "patch", id, "rev", rev, "state", state)
		count++
	}

	p.Log.Infow("ref processed", "ref", refname, "updated", count, "state", state)
}

// processCommit matches one commit to its patch and applies the state. The
// commit id is recorded on the patch as its commit reference.
func (p *Processor) processCommit(ctx context.Context, rev, state string) (int64, error) {
	diff, err := p.Git.Show(ctx, rev)
	if err != nil {
		return 0, fmt.Errorf("reading commit: %w", err)
	}

	h, err := hash.Diff(diff)
	if err != nil {
		return 0, fmt.Errorf("hashing commit: %w", err)
	}

	patch, err := p.Patches.PatchByHash(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("looking up patch: %w", err)
	}

	if _, err := p.Patches.UpdatePatch(ctx, patch.ID, client.PatchUpdate{
		StateName: &state,
		CommitRef: &rev,
	}); err != nil {
		return 0, fmt.Errorf("updating patch %d: %w", patch.ID, err)
	}

	return patch.ID, nil
}
