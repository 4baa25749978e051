package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CreateAccount inserts an API account and returns it with its assigned id.
func (s *Store) CreateAccount(a *model.Account) (*model.Account, error) {
	res, err := s.db.Exec(
		`INSERT INTO accounts (username, email, is_superuser, token)
		VALUES (?, ?, ?, ?)`,
		a.Username, a.Email, a.Superuser, a.Token)
	if err != nil {
		return nil, fmt.Errorf("store: inserting account: %w", err)
	}

	a.ID, _ = res.LastInsertId()

	return a, nil
}

// AccountByUsername looks up an account by its unique username.
func (s *Store) AccountByUsername(username string) (*model.Account, error) {
	var a model.Account
	err := s.db.QueryRow(
		`SELECT id, username, email, is_superuser, token
		FROM accounts WHERE username = ?`, username).
		Scan(&a.ID, &a.Username, &a.Email, &a.Superuser, &a.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting account by username: %w", err)
	}

	return &a, nil
}

// AccountByToken resolves an API token to its account.
func (s *Store) AccountByToken(token string) (*model.Account, error) {
	var a model.Account
	err := s.db.QueryRow(
		`SELECT id, username, email, is_superuser, token
		FROM accounts WHERE token = ?`, token).
		Scan(&a.ID, &a.Username, &a.Email, &a.Superuser, &a.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting account by token: %w", err)
	}

	return &a, nil
}

// AddMaintainer marks an account as maintainer of a project.
func (s *Store) AddMaintainer(projectID, accountID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO maintainers (project_id, account_id) VALUES (?, ?)`,
		projectID, accountID)
	if err != nil {
		return fmt.Errorf("store: adding maintainer: %w", err)
	}

	return nil
}

// IsMaintainer reports whether the account maintains the project.
func (s *Store) IsMaintainer(projectID, accountID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM maintainers WHERE project_id = ? AND account_id = ?`,
		projectID, accountID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: checking maintainer: %w", err)
	}

	return n > 0, nil
}
