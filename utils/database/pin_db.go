package database

import (
	"context"
	"fmt"

	"slopsbot/model"
)

// ClaimPin inserts an unpinned record unless the message was already claimed.
func (s *Store) ClaimPin(ctx context.Context, pin model.PinRecord) (bool, error) {
	pin.Pinned = false
	query := `INSERT OR IGNORE INTO pins (message_id, user_id, guild_id, pinned)
			  VALUES (:message_id, :user_id, :guild_id, :pinned)`
	result, err := s.db.NamedExecContext(ctx, query, pin)
	if err != nil {
		return false, fmt.Errorf("failed to insert pin for message %s: %w", pin.MessageID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for pin %s: %w", pin.MessageID, err)
	}
	return rowsAffected == 1, nil
}

// ConfirmPin marks a claimed message as actually pinned.
func (s *Store) ConfirmPin(ctx context.Context, messageID string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE pins SET pinned = 1 WHERE message_id = ?", messageID)
	if err != nil {
		return fmt.Errorf("failed to confirm pin for message %s: %w", messageID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for pin %s: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no pin claim found for message %s", messageID)
	}
	return nil
}

// ReleasePin drops a claim so the message can be retried on a later scan.
func (s *Store) ReleasePin(ctx context.Context, messageID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pins WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to release pin for message %s: %w", messageID, err)
	}
	return nil
}

// CountPins returns per-user counts of confirmed pins in a guild, highest first.
func (s *Store) CountPins(ctx context.Context, guildID string) ([]model.UserCount, error) {
	var counts []model.UserCount
	query := `SELECT user_id, COUNT(*) AS count FROM pins
			  WHERE guild_id = ? AND pinned = 1
			  GROUP BY user_id ORDER BY count DESC, user_id ASC`
	if err := s.db.SelectContext(ctx, &counts, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to count pins for guild %s: %w", guildID, err)
	}
	return counts, nil
}
