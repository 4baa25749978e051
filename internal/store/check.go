package store

import (
	"fmt"
	"time"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CreateCheck inserts a check and returns it with its assigned id.
func (s *Store) CreateCheck(c *model.Check) (*model.Check, error) {
	res, err := s.db.Exec(
		`INSERT INTO checks (patch_id, user_id, date, state, target_url, description, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.PatchID, c.UserID, orNow(c.Date), c.State, c.TargetURL,
		c.Description, c.Context)
	if err != nil {
		return nil, fmt.Errorf("store: inserting check: %w", err)
	}

	c.ID, _ = res.LastInsertId()
	if c.Date.IsZero() {
		c.Date = time.Now().UTC()
	}

	return c, nil
}

// ListChecks returns all checks on a patch, oldest first.
func (s *Store) ListChecks(patchID int64) ([]*model.Check, error) {
	rows, err := s.db.Query(
		`SELECT id, patch_id, user_id, date, state, target_url, description, context
		FROM checks WHERE patch_id = ? ORDER BY id`, patchID)
	if err != nil {
		return nil, fmt.Errorf("store: listing checks: %w", err)
	}
	defer rows.Close()

	var checks []*model.Check
	for rows.Next() {
		var c model.Check
		err := rows.Scan(&c.ID, &c.PatchID, &c.UserID, &c.Date, &c.State,
			&c.TargetURL, &c.Description, &c.Context)
		if err != nil {
			return nil, fmt.Errorf("store: scanning check: %w", err)
		}
		checks = append(checks, &c)
	}

	return checks, rows.Err()
}

// GetCheck fetches a single check on a patch.
func (s *Store) GetCheck(patchID, checkID int64) (*model.Check, error) {
	checks, err := s.ListChecks(patchID)
	if err != nil {
		return nil, err
	}
	for _, c := range checks {
		if c.ID == checkID {
			return c, nil
		}
	}

	return nil, ErrNotFound
}

// CombinedCheckState reduces a patch's checks to one state: per context only
// the newest check counts, and the worst surviving state wins. A patch with
// no checks is pending.
func (s *Store) CombinedCheckState(patchID int64) (string, error) {
	checks, err := s.ListChecks(patchID)
	if err != nil {
		return "", err
	}

	latest := map[string]*model.Check{}
	for _, c := range checks {
		latest[c.Context] = c // ordered oldest first, last write wins
	}

	if len(latest) == 0 {
		return model.CheckStatePending, nil
	}

	// A single failure or warning taints the whole patch, and an
	// outstanding pending check blocks success.
	for _, state := range []string{
		model.CheckStateFail, model.CheckStateWarning, model.CheckStatePending,
	} {
		for _, c := range latest {
			if c.State == state {
				return state, nil
			}
		}
	}

	return model.CheckStateSuccess, nil
}
