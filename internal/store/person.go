package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CreatePerson inserts a person, or returns the existing row when the
// email is already known.
func (s *Store) CreatePerson(p *model.Person) (*model.Person, error) {
	_, err := s.db.Exec(
		`INSERT INTO people (name, email) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name`,
		p.Name, p.Email)
	if err != nil {
		return nil, fmt.Errorf("store: inserting person: %w", err)
	}

	// last_insert_rowid is stale when the upsert took the update path, so
	// resolve the row by its unique email instead.
	return s.PersonByEmail(p.Email)
}

// GetPerson fetches a person by id.
func (s *Store) GetPerson(id int64) (*model.Person, error) {
	var p model.Person
	err := s.db.QueryRow(
		`SELECT id, name, email FROM people WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting person %d: %w", id, err)
	}

	return &p, nil
}

// PersonByEmail fetches a person by email.
func (s *Store) PersonByEmail(email string) (*model.Person, error) {
	var p model.Person
	err := s.db.QueryRow(
		`SELECT id, name, email FROM people WHERE email = ?`, email).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting person %q: %w", email, err)
	}

	return &p, nil
}

// ListPeople returns the window of people and the total count.
func (s *Store) ListPeople(page Page) ([]*model.Person, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: counting people: %w", err)
	}

	q := `SELECT id, name, email FROM people ORDER BY id`
	if page.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, page.Limit, page.Offset)
	}

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, 0, fmt.Errorf("store: listing people: %w", err)
	}
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, 0, fmt.Errorf("store: scanning person: %w", err)
		}
		people = append(people, &p)
	}

	return people, total, rows.Err()
}
