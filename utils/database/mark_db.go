package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetMark returns the stored value for a schedule mark.
func (s *Store) GetMark(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM schedule_marks WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get mark %s: %w", name, err)
	}
	return value, true, nil
}

// SetMark upserts a schedule mark.
func (s *Store) SetMark(ctx context.Context, name, value string) error {
	query := `INSERT INTO schedule_marks (name, value) VALUES (?, ?)
			  ON CONFLICT(name) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("failed to set mark %s: %w", name, err)
	}
	return nil
}
