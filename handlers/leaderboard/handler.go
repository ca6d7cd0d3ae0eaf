// Package leaderboard answers the !lb message command from the card and pin ledgers.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"slopsbot/model"
	"slopsbot/utils"
)

// Command is the message prefix that triggers a leaderboard.
const Command = "!lb"

// maxRows keeps the reply under Discord's 2000 character message limit.
const maxRows = 25

const usage = "Usage: `!lb <red|yellow|green|pins>`"

type Handler struct {
	platform model.Platform
	store    model.Store
	roles    model.RoleNames
}

func NewHandler(platform model.Platform, store model.Store, roles model.RoleNames) *Handler {
	return &Handler{platform: platform, store: store, roles: roles}
}

// Matches reports whether content is a leaderboard command.
func Matches(content string) bool {
	fields := strings.Fields(content)
	return len(fields) > 0 && strings.EqualFold(fields[0], Command)
}

// Handle replies to a !lb message with the ranked counts for the requested category.
func (h *Handler) Handle(ctx context.Context, m *discordgo.Message) error {
	fields := strings.Fields(m.Content)
	if len(fields) < 2 {
		return utils.Reply(h.platform, m, usage)
	}
	category, ok := model.ParseCategory(strings.ToLower(fields[1]))
	if !ok {
		return utils.Reply(h.platform, m, usage)
	}

	counts, err := h.counts(ctx, m.GuildID, category)
	if err != nil {
		log.WithFields(log.Fields{
			"category": category,
			"server":   m.GuildID,
		}).WithError(err).Error("Failed to load leaderboard")
		return err
	}
	return utils.Reply(h.platform, m, Format(category, counts))
}

func (h *Handler) counts(ctx context.Context, guildID string, category model.Category) ([]model.UserCount, error) {
	if category == model.CategoryPin {
		return h.store.CountPins(ctx, guildID)
	}
	return h.store.CountCards(ctx, guildID, h.roles.For(category))
}

// Format renders counts as a ranked list. counts must already be sorted.
func Format(category model.Category, counts []model.UserCount) string {
	if len(counts) == 0 {
		return fmt.Sprintf("No %s counted yet.", category)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s leaderboard\n", strings.ToUpper(string(category[:1]))+string(category[1:]))
	for i, c := range counts {
		if i == maxRows {
			fmt.Fprintf(&sb, "...and %d more", len(counts)-maxRows)
			break
		}
		fmt.Fprintf(&sb, "%d. <@%s>: %d\n", i+1, c.UserID, c.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}
