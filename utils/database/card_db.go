package database

import (
	"context"
	"fmt"

	"slopsbot/model"
)

// ClaimCard inserts the card unless one already exists for (role, message_id).
// It reports true only for the call that created the row.
func (s *Store) ClaimCard(ctx context.Context, card model.CardRecord) (bool, error) {
	query := `INSERT OR IGNORE INTO cards (role, message_id, user_id, guild_id)
			  VALUES (:role, :message_id, :user_id, :guild_id)`
	result, err := s.db.NamedExecContext(ctx, query, card)
	if err != nil {
		return false, fmt.Errorf("failed to insert card for message %s: %w", card.MessageID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for card %s: %w", card.MessageID, err)
	}
	return rowsAffected == 1, nil
}

// CardExists reports whether the (role, message) pair has already been carded.
func (s *Store) CardExists(ctx context.Context, role, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM cards WHERE role = ? AND message_id = ?", role, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to look up card for message %s: %w", messageID, err)
	}
	return count > 0, nil
}

// CountCards returns per-user card counts for a role in a guild, highest first.
func (s *Store) CountCards(ctx context.Context, guildID, role string) ([]model.UserCount, error) {
	var counts []model.UserCount
	query := `SELECT user_id, COUNT(*) AS count FROM cards
			  WHERE guild_id = ? AND role = ?
			  GROUP BY user_id ORDER BY count DESC, user_id ASC`
	if err := s.db.SelectContext(ctx, &counts, query, guildID, role); err != nil {
		return nil, fmt.Errorf("failed to count cards for guild %s: %w", guildID, err)
	}
	return counts, nil
}
