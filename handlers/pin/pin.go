package pin

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"slopsbot/model"
	"slopsbot/utils"
)

const (
	// NoPinReply answers authors who ask not to be pinned.
	NoPinReply = "SLOPSBOT DOES NOT CARE FOR YOUR INSTRUCTIONS"
	// PinCeilingReply is sent when the channel has no pin slots left.
	PinCeilingReply = "Unable to pin, maximum number of pins reached"
)

// Discord JSON error code for "Maximum number of pins reached".
const maxPinsReachedCode = 30003

var noPinDirective = regexp.MustCompile(`(?i)\bno pin`)

// Controller pins each qualifying message at most once.
type Controller struct {
	platform model.Platform
	store    model.Store
}

func NewController(platform model.Platform, store model.Store) *Controller {
	return &Controller{platform: platform, store: store}
}

// Pin claims the message in the pin ledger, pins it and confirms the claim. A pin-ceiling failure
// keeps the unconfirmed claim so the author is told only once and nothing is counted; any other
// platform failure releases it for a later scan.
func (c *Controller) Pin(ctx context.Context, m *discordgo.Message, guildID string) (model.Outcome, error) {
	record := model.PinRecord{MessageID: m.ID, GuildID: guildID}
	if m.Author != nil {
		record.UserID = m.Author.ID
	}
	claimed, err := c.store.ClaimPin(ctx, record)
	if err != nil {
		return model.OutcomeFailed, err
	}
	if !claimed {
		return model.OutcomeSkipped, nil
	}

	logger := log.WithFields(log.Fields{
		"message": m.ID,
		"user":    record.UserID,
		"name":    utils.DisplayName(m.Author),
		"server":  guildID,
	})

	if err := c.platform.ChannelMessagePin(m.ChannelID, m.ID); err != nil {
		logger.WithError(err).Error("Error when pinning message")
		if IsPinCeiling(err) {
			if rerr := utils.Reply(c.platform, m, PinCeilingReply); rerr != nil {
				logger.WithError(rerr).Warn("Failed to send pin ceiling reply")
			}
			return model.OutcomeFailed, err
		}
		if rerr := c.store.ReleasePin(ctx, m.ID); rerr != nil {
			return model.OutcomeFailed, rerr
		}
		return model.OutcomeFailed, err
	}

	if err := c.store.ConfirmPin(ctx, m.ID); err != nil {
		logger.WithError(err).Error("Failed to record pin")
		return model.OutcomeFailed, err
	}
	logger.Info("Message pinned")
	logger.Debug(m.Content)

	if HasNoPinDirective(m.Content) {
		if err := utils.Reply(c.platform, m, NoPinReply); err != nil {
			logger.WithError(err).Warn("Failed to send no-pin reply")
		}
	}
	return model.OutcomePinned, nil
}

// HasNoPinDirective reports whether the text asks not to be pinned.
func HasNoPinDirective(content string) bool {
	return noPinDirective.MatchString(content)
}

// IsPinCeiling reports whether err is Discord refusing a pin because the channel is full.
func IsPinCeiling(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == maxPinsReachedCode
	}
	return strings.Contains(err.Error(), "Maximum number of pins reached")
}
