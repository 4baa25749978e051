package hook

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ZeroRev is the all-zeros object id git passes for created or deleted refs.
const ZeroRev = "0000000000000000000000000000000000000000"

// GitCLI runs git against a repository directory (empty means the process
// working directory, which is what a hook gets).
type GitCLI struct {
	Dir string
}

func (g GitCLI) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	// always detach from the caller's stdin; with --stdin git would
	// otherwise read the hook's own input stream
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}

	return stdout.String(), nil
}

// RevList enumerates the new non-merge commits a ref update brings in,
// oldest first. For a created ref only commits not reachable from any other
// ref count as new; the updated ref itself must not be negated, since
// post-receive runs after the ref has moved and it already points at newrev.
func (g GitCLI) RevList(ctx context.Context, oldrev, newrev, refname string) ([]string, error) {
	args := []string{"rev-list", "--no-merges", "--reverse"}
	stdin := ""
	if oldrev == ZeroRev {
		exclude, err := g.otherRefs(ctx, refname)
		if err != nil {
			return nil, err
		}
		args = append(args, newrev, "--stdin")
		stdin = exclude
	} else {
		args = append(args, oldrev+".."+newrev)
	}

	out, err := g.run(ctx, stdin, args...)
	if err != nil {
		return nil, err
	}

	var revs []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			revs = append(revs, line)
		}
	}

	return revs, nil
}

// otherRefs returns every ref except refname in rev-list negation form
// ("^refs/..."), one per line, for feeding through --stdin.
func (g GitCLI) otherRefs(ctx context.Context, refname string) (string, error) {
	out, err := g.run(ctx, "", "for-each-ref", "--format=%(refname)")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" && line != refname {
			b.WriteString("^" + line + "\n")
		}
	}

	return b.String(), nil
}

// Show returns the commit message and diff of a revision, the input the
// patch hash is computed from.
func (g GitCLI) Show(ctx context.Context, rev string) (string, error) {
	return g.run(ctx, "", "show", rev)
}
