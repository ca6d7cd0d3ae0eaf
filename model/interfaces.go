package model

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Store is the persistence gateway shared by every component.
// Claim methods are atomic insert-if-absent operations and report whether this call created the record.
type Store interface {
	ClaimCard(ctx context.Context, card CardRecord) (bool, error)
	CardExists(ctx context.Context, role, messageID string) (bool, error)
	CountCards(ctx context.Context, guildID, role string) ([]UserCount, error)

	FindRoleGrant(ctx context.Context, userID, guildID string) (*RoleGrant, error)
	InsertRoleGrant(ctx context.Context, grant RoleGrant) error
	UpdateRoleGrant(ctx context.Context, grant RoleGrant) error
	ListRoleGrants(ctx context.Context) ([]RoleGrant, error)
	// DeleteRoleGrant deletes the grant only if its role and timestamp still match, and reports
	// whether a row was removed.
	DeleteRoleGrant(ctx context.Context, grant RoleGrant) (bool, error)

	ClaimPin(ctx context.Context, pin PinRecord) (bool, error)
	ConfirmPin(ctx context.Context, messageID string) error
	ReleasePin(ctx context.Context, messageID string) error
	CountPins(ctx context.Context, guildID string) ([]UserCount, error)

	GetMark(ctx context.Context, name string) (string, bool, error)
	SetMark(ctx context.Context, name, value string) error

	Close() error
}

// Platform is the subset of the Discord REST API the bot uses.
// *discordgo.Session satisfies it.
type Platform interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}
