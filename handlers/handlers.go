package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"slopsbot/bot"
	"slopsbot/handlers/leaderboard"
)

func Register(b *bot.Bot) {
	addHandlers(b)
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithFields(log.Fields{
			"user":   r.User.Username,
			"guilds": len(r.Guilds),
		}).Info("Logged in")
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		stats := func() SessionStats {
			guilds := 0
			if s.State != nil {
				guilds = len(s.State.Guilds)
			}
			return SessionStats{Latency: s.HeartbeatLatency(), Guilds: guilds, Started: b.Started}
		}
		HandleMessage(b, m.Message, selfID, stats)
	})
}

// HandleMessage routes a guild message: commands are answered, everything else triggers a scan of
// the channel it was posted in.
func HandleMessage(b *bot.Bot, m *discordgo.Message, selfID string, stats func() SessionStats) {
	if !shouldHandle(m, selfID) {
		return
	}
	switch {
	case leaderboard.Matches(m.Content):
		if err := b.Leaderboard.Handle(b.Context(), m); err != nil {
			log.WithError(err).WithField("channel", m.ChannelID).Warn("Failed to answer leaderboard command")
		}
	case strings.EqualFold(strings.TrimSpace(m.Content), StatusCommand):
		SystemInfoHandler(b.Platform, m, stats())
	default:
		b.ScanChannel(m.ChannelID, m.GuildID)
	}
}

// shouldHandle drops direct messages and anything written by a bot, this one included.
func shouldHandle(m *discordgo.Message, selfID string) bool {
	if m == nil || m.Author == nil || m.GuildID == "" {
		return false
	}
	return !m.Author.Bot && m.Author.ID != selfID
}
