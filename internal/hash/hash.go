// Package hash computes the identifying hash of a patch from its unified
// diff. The hash is taken over a normalized form of the diff so that the
// same change produces the same hash regardless of hunk offsets or of the
// -p1 top-level directory names, which is what lets a pushed commit be
// matched back to the patch it came from.
package hash

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	hunkRe     = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)
	filenameRe = regexp.MustCompile(`^(---|\+\+\+) (\S+)`)
)

// ErrNoContent is returned when the input holds no diff lines at all.
var ErrNoContent = fmt.Errorf("hash: no patch content")

// Diff hashes a unified diff. Only file headers, hunk headers and
// context/added/removed lines participate:
//
//   - "---"/"+++" lines have their top directory rewritten to a/ and b/.
//   - hunk headers keep line counts but drop starting line numbers.
//   - lines beginning with '-', '+' or ' ' are hashed verbatim.
//
// Everything else ("diff --git", "index", mail headers...) is ignored.
func Diff(diff string) (string, error) {
	h := sha1.New()
	hashed := false

	sc := bufio.NewScanner(strings.NewReader(diff))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// Prefix lines only count once a hunk has started; otherwise an
	// indented commit message (as in git-show output) would leak into
	// the hash as context lines.
	inHunk := false

	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}

		if m := filenameRe.FindStringSubmatch(line); m != nil {
			inHunk = false
			line = m[1] + " " + normalizeFilename(m[1], m[2])
		} else if m := hunkRe.FindStringSubmatch(line); m != nil {
			inHunk = true
			line = fmt.Sprintf("@@ -%d +%d @@", count(m[1]), count(m[2]))
		} else if !inHunk || (line[0] != '-' && line[0] != '+' && line[0] != ' ') {
			continue
		}

		hashed = true
		io.WriteString(h, line+"\n")
	}

	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("hash: scanning diff: %w", err)
	}

	if !hashed {
		return "", ErrNoContent
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeFilename rewrites the -p1 top directory of a file header path so
// "--- foo/x.c" and "--- bar/x.c" hash identically. /dev/null is kept as-is.
func normalizeFilename(prefix, name string) string {
	if name == "/dev/null" {
		return name
	}

	top := "b/"
	if prefix == "---" {
		top = "a/"
	}

	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return top + name
	}

	return top + parts[1]
}

// count parses a hunk line count; a missing count means a single line.
func count(s string) int {
	if s == "" {
		return 1
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}

	return n
}
