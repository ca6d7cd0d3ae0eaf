package utils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"slopsbot/model"
)

// FindRole looks a guild role up by its display name.
func FindRole(p model.Platform, guildID, name string) (*discordgo.Role, error) {
	roles, err := p.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles for guild %s: %w", guildID, err)
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in guild %s", model.ErrRoleNotFound, name, guildID)
}
