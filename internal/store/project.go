package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CreateProject inserts a project and returns it with its assigned id.
func (s *Store) CreateProject(p *model.Project) (*model.Project, error) {
	res, err := s.db.Exec(
		`INSERT INTO projects (linkname, name, listid, listemail, web_url, scm_url)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.LinkName, p.Name, p.ListID, p.ListEmail, p.WebURL, p.SCMURL)
	if err != nil {
		return nil, fmt.Errorf("store: inserting project: %w", err)
	}

	p.ID, _ = res.LastInsertId()

	return p, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(id int64) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRow(
		`SELECT id, linkname, name, listid, listemail, web_url, scm_url
		FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.LinkName, &p.Name, &p.ListID, &p.ListEmail, &p.WebURL, &p.SCMURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting project %d: %w", id, err)
	}

	return &p, nil
}

// ProjectByLinkName fetches a project by its linkname.
func (s *Store) ProjectByLinkName(linkname string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRow(
		`SELECT id, linkname, name, listid, listemail, web_url, scm_url
		FROM projects WHERE linkname = ?`, linkname).
		Scan(&p.ID, &p.LinkName, &p.Name, &p.ListID, &p.ListEmail, &p.WebURL, &p.SCMURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting project %q: %w", linkname, err)
	}

	return &p, nil
}

// ListProjects returns the window of projects and the total count.
func (s *Store) ListProjects(page Page) ([]*model.Project, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: counting projects: %w", err)
	}

	q := `SELECT id, linkname, name, listid, listemail, web_url, scm_url
		FROM projects ORDER BY id`
	if page.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, page.Limit, page.Offset)
	}

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, 0, fmt.Errorf("store: listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		var p model.Project
		err := rows.Scan(&p.ID, &p.LinkName, &p.Name, &p.ListID,
			&p.ListEmail, &p.WebURL, &p.SCMURL)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scanning project: %w", err)
		}
		projects = append(projects, &p)
	}

	return projects, total, rows.Err()
}

// ProjectUpdate carries the mutable project fields.
type ProjectUpdate struct {
	LinkName  *string
	Name      *string
	ListID    *string
	ListEmail *string
	WebURL    *string
	SCMURL    *string
}

// UpdateProject applies an update and returns the resulting row.
func (s *Store) UpdateProject(id int64, u ProjectUpdate) (*model.Project, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+` = ?`)
			args = append(args, *v)
		}
	}
	set("linkname", u.LinkName)
	set("name", u.Name)
	set("listid", u.ListID)
	set("listemail", u.ListEmail)
	set("web_url", u.WebURL)
	set("scm_url", u.SCMURL)

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.Exec(
			`UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("store: updating project %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetProject(id)
}
