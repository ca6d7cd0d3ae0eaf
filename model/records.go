package model

import "time"

// CardRecord seals a (role, message) pair so the message is never processed for that role again.
// The table will be named 'cards'.
type CardRecord struct {
	Role      string `db:"role" bson:"role"`
	MessageID string `db:"message_id" bson:"messageId"`
	UserID    string `db:"user_id" bson:"user"`
	GuildID   string `db:"guild_id" bson:"server"`
}

// RoleGrant is the achievement role a user currently holds in a guild.
type RoleGrant struct {
	UserID      string    `db:"user_id" bson:"user"`
	GuildID     string    `db:"guild_id" bson:"server"`
	Role        string    `db:"role" bson:"role"`
	DisplayName string    `db:"display_name" bson:"displayName"`
	Timestamp   time.Time `db:"timestamp" bson:"timestamp"`
}

// PinRecord marks a message as handled by the pin controller. Pinned is set once the platform
// accepted the pin; a claim left unpinned (the channel was full) only stops repeat attempts.
type PinRecord struct {
	MessageID string `db:"message_id" bson:"messageId"`
	UserID    string `db:"user_id" bson:"user"`
	GuildID   string `db:"guild_id" bson:"server"`
	Pinned    bool   `db:"pinned" bson:"pinned"`
}

// ScheduleMark names used by the day/night rename.
const (
	MarkGeneralChannelName = "generalChannelName"
	MarkLastLateNightCheck = "lastLateNightCheck"
	MarkLastDaytimeCheck   = "lastDaytimeCheck"
)

// UserCount is one leaderboard row.
type UserCount struct {
	UserID string `db:"user_id" bson:"_id"`
	Count  int    `db:"count" bson:"count"`
}
