package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"slopsbot/model"
)

// Reply answers a message in its channel without pinging anyone.
func Reply(p model.Platform, m *discordgo.Message, content string) error {
	_, err := p.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         content,
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return fmt.Errorf("failed to reply to message %s: %w", m.ID, err)
	}
	return nil
}

// ReplyWithFile answers a message with an attachment read from path.
// A missing file degrades to a text-only reply.
func ReplyWithFile(p model.Platform, m *discordgo.Message, content, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Reply(p, m, content)
		}
		return fmt.Errorf("failed to open attachment %s: %w", path, err)
	}
	defer f.Close()

	_, err = p.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         content,
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
		Files: []*discordgo.File{{
			Name:   filepath.Base(path),
			Reader: f,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to reply with file to message %s: %w", m.ID, err)
	}
	return nil
}

// DisplayName returns the name a user shows up as.
func DisplayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
