package model

import "time"

// Check states, ordered by severity. The combined state of a patch is the
// worst state among the newest check per context.
const (
	CheckStatePending = "pending"
	CheckStateSuccess = "success"
	CheckStateWarning = "warning"
	CheckStateFail    = "fail"
)

// Project is a mailing-list-backed source tree patches are tracked against.
type Project struct {
	ID        int64  `json:"id"`
	LinkName  string `json:"linkname"`
	Name      string `json:"name"`
	ListID    string `json:"listid"`
	ListEmail string `json:"listemail"`
	WebURL    string `json:"web_url,omitempty"`
	SCMURL    string `json:"scm_url,omitempty"`
}

// Person is a patch submitter or delegate identity, keyed by email.
type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// State is a patch lifecycle state (New, Accepted, Superseded, ...).
type State struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Ordering       int    `json:"ordering"`
	ActionRequired bool   `json:"action_required"`
}

// Patch is a single tracked patch: the mail metadata plus the diff and the
// hash computed over its normalized form.
type Patch struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project"`
	MsgID     string    `json:"msgid"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Submitter int64     `json:"submitter"`
	Delegate  *int64    `json:"delegate,omitempty"`
	StateID   int64     `json:"state"`
	Hash      string    `json:"hash"`
	CommitRef string    `json:"commit_ref,omitempty"`
	Content   string    `json:"content,omitempty"`
	Diff      string    `json:"diff,omitempty"`
}

// Check is a third-party test result attached to a patch.
type Check struct {
	ID          int64     `json:"id"`
	PatchID     int64     `json:"patch"`
	UserID      int64     `json:"user"`
	Date        time.Time `json:"date"`
	State       string    `json:"state"`
	TargetURL   string    `json:"target_url"`
	Description string    `json:"description"`
	Context     string    `json:"context"`
}

// Bundle is a named, user-curated collection of patches.
type Bundle struct {
	ID      int64   `json:"id"`
	OwnerID int64   `json:"owner"`
	Project int64   `json:"project"`
	Name    string  `json:"name"`
	Public  bool    `json:"public"`
	Patches []int64 `json:"patches"`
}

// Account is an authenticated API user. Maintainership of projects hangs
// off accounts, not persons.
type Account struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Superuser bool   `json:"is_superuser"`
	Token     string `json:"-"`
}

// CheckSeverity ranks a check state for combining. Unknown states rank
// below pending so bad input never masks a real result.
func CheckSeverity(state string) int {
	switch state {
	case CheckStateFail:
		return 3
	case CheckStateWarning:
		return 2
	case CheckStateSuccess:
		return 1
	case CheckStatePending:
		return 0
	}

	return -1
}
