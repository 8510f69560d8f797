package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a state key has never been written.
var ErrNotFound = errors.New("state not found")

// StateStore is a small key/value table used for client-side durable state.
type StateStore struct {
	db     *sql.DB
	driver string
}

// NewStateStore wraps db. driver selects the upsert dialect.
func NewStateStore(db *sql.DB, driver string) *StateStore {
	return &StateStore{db: db, driver: strings.ToLower(driver)}
}

// Get returns the payload stored under name.
func (s *StateStore) Get(ctx context.Context, name string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM local_state WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", name, err)
	}
	return payload, nil
}

// Set writes payload under name, replacing any previous value.
func (s *StateStore) Set(ctx context.Context, name, payload string) error {
	var stmt string
	switch s.driver {
	case "mysql":
		stmt = `INSERT INTO local_state (name, payload, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`
	default:
		stmt = `INSERT INTO local_state (name, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, stmt, name, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("set state %s: %w", name, err)
	}
	return nil
}

// Delete removes name. Missing keys are not an error.
func (s *StateStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_state WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete state %s: %w", name, err)
	}
	return nil
}
