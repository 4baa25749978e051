package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CreateBundle inserts a bundle with its patch list.
func (s *Store) CreateBundle(b *model.Bundle) (*model.Bundle, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: beginning bundle insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO bundles (owner_id, project_id, name, public) VALUES (?, ?, ?, ?)`,
		b.OwnerID, b.Project, b.Name, b.Public)
	if err != nil {
		return nil, fmt.Errorf("store: inserting bundle: %w", err)
	}
	b.ID, _ = res.LastInsertId()

	for i, patchID := range b.Patches {
		_, err := tx.Exec(
			`INSERT INTO bundle_patches (bundle_id, patch_id, ordering) VALUES (?, ?, ?)`,
			b.ID, patchID, i)
		if err != nil {
			return nil, fmt.Errorf("store: inserting bundle patch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: committing bundle: %w", err)
	}

	return b, nil
}

// GetBundle fetches a bundle with its ordered patch list.
func (s *Store) GetBundle(id int64) (*model.Bundle, error) {
	var b model.Bundle
	err := s.db.QueryRow(
		`SELECT id, owner_id, project_id, name, public FROM bundles WHERE id = ?`, id).
		Scan(&b.ID, &b.OwnerID, &b.Project, &b.Name, &b.Public)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting bundle %d: %w", id, err)
	}

	rows, err := s.db.Query(
		`SELECT patch_id FROM bundle_patches WHERE bundle_id = ? ORDER BY ordering`, id)
	if err != nil {
		return nil, fmt.Errorf("store: listing bundle patches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var patchID int64
		if err := rows.Scan(&patchID); err != nil {
			return nil, fmt.Errorf("store: scanning bundle patch: %w", err)
		}
		b.Patches = append(b.Patches, patchID)
	}

	return &b, rows.Err()
}

// ListBundles returns bundles visible to the account: public ones plus the
// account's own. A zero accountID lists only public bundles.
func (s *Store) ListBundles(accountID int64, page Page) ([]*model.Bundle, int, error) {
	cond := ` WHERE public = 1 OR owner_id = ?`

	var total int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bundles`+cond, accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("store: counting bundles: %w", err)
	}

	q := `SELECT id FROM bundles` + cond + ` ORDER BY id`
	if page.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, page.Limit, page.Offset)
	}

	rows, err := s.db.Query(q, accountID)
	if err != nil {
		return nil, 0, fmt.Errorf("store: listing bundles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("store: scanning bundle: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var bundles []*model.Bundle
	for _, id := range ids {
		b, err := s.GetBundle(id)
		if err != nil {
			return nil, 0, err
		}
		bundles = append(bundles, b)
	}

	return bundles, total, nil
}
