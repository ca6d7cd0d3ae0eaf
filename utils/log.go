package utils

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// EmbedSender is the part of the Discord session the log hook needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// SetupLogging configures the global logrus logger.
func SetupLogging(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// ChannelHook mirrors warn and error entries into a Discord log channel as embeds.
type ChannelHook struct {
	sender    EmbedSender
	channelID string
}

func NewChannelHook(sender EmbedSender, channelID string) *ChannelHook {
	return &ChannelHook{sender: sender, channelID: channelID}
}

func (h *ChannelHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}

func (h *ChannelHook) Fire(entry *log.Entry) error {
	embed := buildLogEmbed(entry)
	// Sending is a REST round-trip; never hold up the caller.
	go func() {
		if _, err := h.sender.ChannelMessageSendEmbed(h.channelID, embed); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send log to discord: %v\n", err)
		}
	}()
	return nil
}

func getColor(level log.Level) int {
	switch level {
	case log.InfoLevel:
		return 3066993 // Green
	case log.WarnLevel:
		return 15105570 // Orange
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return 15158332 // Red
	default:
		return 3447003 // Blue
	}
}

func buildLogEmbed(entry *log.Entry) *discordgo.MessageEmbed {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]*discordgo.MessageEmbedField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   k,
			Value:  fmt.Sprint(entry.Data[k]),
			Inline: true,
		})
	}
	return &discordgo.MessageEmbed{
		Title:       strings.ToUpper(entry.Level.String()) + " Log",
		Description: entry.Message,
		Color:       getColor(entry.Level),
		Fields:      fields,
		Timestamp:   entry.Time.Format("2006-01-02T15:04:05Z07:00"),
	}
}
