package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slopsbot/model"
)

// FindRoleGrant returns the active grant for a user in a guild, or nil if there is none.
func (s *Store) FindRoleGrant(ctx context.Context, userID, guildID string) (*model.RoleGrant, error) {
	var grant model.RoleGrant
	query := "SELECT * FROM role_grants WHERE user_id = ? AND guild_id = ?"
	err := s.db.GetContext(ctx, &grant, query, userID, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role grant for user %s in guild %s: %w", userID, guildID, err)
	}
	return &grant, nil
}

// InsertRoleGrant stores a first-time grant.
func (s *Store) InsertRoleGrant(ctx context.Context, grant model.RoleGrant) error {
	grant.Timestamp = grant.Timestamp.UTC()
	query := `INSERT INTO role_grants (user_id, guild_id, role, display_name, timestamp)
			  VALUES (:user_id, :guild_id, :role, :display_name, :timestamp)`
	if _, err := s.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("failed to insert role grant for user %s: %w", grant.UserID, err)
	}
	return nil
}

// UpdateRoleGrant sets role, display name and timestamp of an existing grant.
func (s *Store) UpdateRoleGrant(ctx context.Context, grant model.RoleGrant) error {
	grant.Timestamp = grant.Timestamp.UTC()
	query := `UPDATE role_grants SET role = :role, display_name = :display_name, timestamp = :timestamp
			  WHERE user_id = :user_id AND guild_id = :guild_id`
	result, err := s.db.NamedExecContext(ctx, query, grant)
	if err != nil {
		return fmt.Errorf("failed to update role grant for user %s: %w", grant.UserID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for user %s: %w", grant.UserID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no role grant found for user %s in guild %s", grant.UserID, grant.GuildID)
	}
	return nil
}

// ListRoleGrants returns every active grant.
func (s *Store) ListRoleGrants(ctx context.Context) ([]model.RoleGrant, error) {
	var grants []model.RoleGrant
	if err := s.db.SelectContext(ctx, &grants, "SELECT * FROM role_grants"); err != nil {
		return nil, fmt.Errorf("failed to list role grants: %w", err)
	}
	return grants, nil
}

// DeleteRoleGrant removes the grant matching user, guild, role and timestamp.
// A grant extended or swapped in the meantime is left alone and false is returned.
func (s *Store) DeleteRoleGrant(ctx context.Context, grant model.RoleGrant) (bool, error) {
	query := "DELETE FROM role_grants WHERE user_id = ? AND guild_id = ? AND role = ? AND timestamp = ?"
	result, err := s.db.ExecContext(ctx, query, grant.UserID, grant.GuildID, grant.Role, grant.Timestamp.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to delete role grant for user %s in guild %s: %w", grant.UserID, grant.GuildID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for user %s: %w", grant.UserID, err)
	}
	return rowsAffected == 1, nil
}
