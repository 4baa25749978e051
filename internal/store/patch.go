package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patchtrack/patchtrack/internal/model"
)

// PatchFilter narrows ListPatches. Zero values mean "no constraint".
// Names refer to the related rows (project linkname, person name, state
// name) the way the public listing filters do.
type PatchFilter struct {
	Project   string
	Submitter string
	Delegate  string
	State     string
	Hash      string
	Since     time.Time
	Until     time.Time
}

// Page is an offset/limit window plus the unwindowed total.
type Page struct {
	Offset int
	Limit  int
}

var patchColNames = []string{
	"id", "project_id", "msgid", "name", "date", "submitter_id",
	"delegate_id", "state_id", "hash", "commit_ref", "content", "diff",
}

var patchCols = strings.Join(patchColNames, ", ")

// qualifiedPatchCols prefixes every column with an alias for joined queries.
func qualifiedPatchCols(alias string) string {
	cols := make([]string, len(patchColNames))
	for i, c := range patchColNames {
		cols[i] = alias + "." + c
	}

	return strings.Join(cols, ", ")
}

func scanPatch(row interface{ Scan(...interface{}) error }) (*model.Patch, error) {
	var (
		p        model.Patch
		delegate sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.ProjectID, &p.MsgID, &p.Name, &p.Date,
		&p.Submitter, &delegate, &p.StateID, &p.Hash, &p.CommitRef,
		&p.Content, &p.Diff)
	if err != nil {
		return nil, err
	}
	if delegate.Valid {
		p.Delegate = &delegate.Int64
	}

	return &p, nil
}

// CreatePatch inserts a patch and returns it with its assigned id.
func (s *Store) CreatePatch(p *model.Patch) (*model.Patch, error) {
	res, err := s.db.Exec(
		`INSERT INTO patches (project_id, msgid, name, date, submitter_id,
			delegate_id, state_id, hash, commit_ref, content, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectID, p.MsgID, p.Name, orNow(p.Date), p.Submitter,
		nullable(p.Delegate), p.StateID, p.Hash, p.CommitRef, p.Content, p.Diff)
	if err != nil {
		return nil, fmt.Errorf("store: inserting patch: %w", err)
	}

	p.ID, _ = res.LastInsertId()
	if p.Date.IsZero() {
		p.Date = time.Now().UTC()
	}

	return p, nil
}

// GetPatch fetches a patch by id.
func (s *Store) GetPatch(id int64) (*model.Patch, error) {
	p, err := scanPatch(s.db.QueryRow(
		`SELECT `+patchCols+` FROM patches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting patch %d: %w", id, err)
	}

	return p, nil
}

// GetPatchByHash fetches the patch with the given content hash, optionally
// constrained to one project (0 means any).
func (s *Store) GetPatchByHash(projectID int64, hash string) (*model.Patch, error) {
	q := `SELECT ` + patchCols + ` FROM patches WHERE hash = ?`
	args := []interface{}{hash}
	if projectID != 0 {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY id LIMIT 1`

	p, err := scanPatch(s.db.QueryRow(q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting patch by hash: %w", err)
	}

	return p, nil
}

// ListPatches returns the window of patches matching the filter and the
// total match count.
func (s *Store) ListPatches(f PatchFilter, page Page) ([]*model.Patch, int, error) {
	var (
		where []string
		args  []interface{}
	)

	join := ""
	add := func(cond string, arg interface{}) {
		where = append(where, cond)
		args = append(args, arg)
	}

	if f.Project != "" {
		join += ` JOIN projects pr ON pr.id = p.project_id`
		add(`pr.linkname = ?`, f.Project)
	}
	if f.Submitter != "" {
		join += ` JOIN people sub ON sub.id = p.submitter_id`
		add(`sub.name = ?`, f.Submitter)
	}
	if f.Delegate != "" {
		join += ` JOIN people del ON del.id = p.delegate_id`
		add(`del.name = ?`, f.Delegate)
	}
	if f.State != "" {
		join += ` JOIN states st ON st.id = p.state_id`
		add(`st.name = ?`, f.State)
	}
	if f.Hash != "" {
		add(`p.hash = ?`, f.Hash)
	}
	if !f.Since.IsZero() {
		add(`p.date > ?`, f.Since)
	}
	if !f.Until.IsZero() {
		add(`p.date < ?`, f.Until)
	}

	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM patches p`+join+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("store: counting patches: %w", err)
	}

	q := `SELECT ` + qualifiedPatchCols("p") + ` FROM patches p` + join + cond + ` ORDER BY p.id`
	if page.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, page.Limit, page.Offset)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: listing patches: %w", err)
	}
	defer rows.Close()

	var patches []*model.Patch
	for rows.Next() {
		p, err := scanPatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scanning patch: %w", err)
		}
		patches = append(patches, p)
	}

	return patches, total, rows.Err()
}

// PatchUpdate carries the mutable patch fields. Nil pointers leave the
// current value untouched.
type PatchUpdate struct {
	StateID   *int64
	Delegate  *int64
	CommitRef *string
}

// UpdatePatch applies an update and returns the resulting row.
func (s *Store) UpdatePatch(id int64, u PatchUpdate) (*model.Patch, error) {
	var (
		sets []string
		args []interface{}
	)
	if u.StateID != nil {
		sets = append(sets, `state_id = ?`)
		args = append(args, *u.StateID)
	}
	if u.Delegate != nil {
		sets = append(sets, `delegate_id = ?`)
		args = append(args, *u.Delegate)
	}
	if u.CommitRef != nil {
		sets = append(sets, `commit_ref = ?`)
		args = append(args, *u.CommitRef)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.Exec(
			`UPDATE patches SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("store: updating patch %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetPatch(id)
}

// States returns all patch states in workflow order.
func (s *Store) States() ([]*model.State, error) {
	rows, err := s.db.Query(
		`SELECT id, name, ordering, action_required FROM states ORDER BY ordering`)
	if err != nil {
		return nil, fmt.Errorf("store: listing states: %w", err)
	}
	defer rows.Close()

	var states []*model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Ordering, &st.ActionRequired); err != nil {
			return nil, fmt.Errorf("store: scanning state: %w", err)
		}
		states = append(states, &st)
	}

	return states, rows.Err()
}

// StateByName resolves a state by its exact name.
func (s *Store) StateByName(name string) (*model.State, error) {
	var st model.State
	err := s.db.QueryRow(
		`SELECT id, name, ordering, action_required FROM states WHERE name = ?`,
		name).Scan(&st.ID, &st.Name, &st.Ordering, &st.ActionRequired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting state %q: %w", name, err)
	}

	return &st, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}

	return t
}

func nullable(v *int64) interface{} {
	if v == nil {
		return nil
	}

	return *v
}
