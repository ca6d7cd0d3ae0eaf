package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"slopsbot/model"
)

// ChannelRenamer switches a channel between its day and night names, at most once per calendar day each.
// Progress is kept in schedule marks so restarts don't repeat a transition.
type ChannelRenamer struct {
	platform model.Platform
	store    model.Store
	cfg      model.ScheduleConfig
	loc      *time.Location
	now      func() time.Time
}

func NewChannelRenamer(platform model.Platform, store model.Store, cfg model.ScheduleConfig) (*ChannelRenamer, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
		}
	}
	return &ChannelRenamer{platform: platform, store: store, cfg: cfg, loc: loc, now: time.Now}, nil
}

func (c *ChannelRenamer) isNight(hour int) bool {
	start, end := c.cfg.NightStartHour, c.cfg.DayStartHour
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// Check applies whichever transition is due at the current time.
func (c *ChannelRenamer) Check(ctx context.Context) error {
	now := c.now().In(c.loc)
	today := now.Format("2006-01-02")
	if c.isNight(now.Hour()) {
		return c.toNight(ctx, today)
	}
	return c.toDay(ctx, today)
}

func (c *ChannelRenamer) toNight(ctx context.Context, today string) error {
	last, _, err := c.store.GetMark(ctx, model.MarkLastLateNightCheck)
	if err != nil {
		return err
	}
	if last == today {
		return nil
	}

	ch, err := c.platform.Channel(c.cfg.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to fetch channel %s: %w", c.cfg.ChannelID, err)
	}
	if ch.Name != c.cfg.NightName {
		if err := c.store.SetMark(ctx, model.MarkGeneralChannelName, ch.Name); err != nil {
			return err
		}
		if err := c.rename(ch.Name, c.cfg.NightName); err != nil {
			return err
		}
	}
	return c.store.SetMark(ctx, model.MarkLastLateNightCheck, today)
}

func (c *ChannelRenamer) toDay(ctx context.Context, today string) error {
	last, _, err := c.store.GetMark(ctx, model.MarkLastDaytimeCheck)
	if err != nil {
		return err
	}
	if last == today {
		return nil
	}

	target := c.cfg.DayName
	if target == "" {
		saved, ok, err := c.store.GetMark(ctx, model.MarkGeneralChannelName)
		if err != nil {
			return err
		}
		if ok {
			target = saved
		}
	}

	if target != "" {
		ch, err := c.platform.Channel(c.cfg.ChannelID)
		if err != nil {
			return fmt.Errorf("failed to fetch channel %s: %w", c.cfg.ChannelID, err)
		}
		if ch.Name != target {
			if err := c.rename(ch.Name, target); err != nil {
				return err
			}
		}
	}
	return c.store.SetMark(ctx, model.MarkLastDaytimeCheck, today)
}

func (c *ChannelRenamer) rename(from, to string) error {
	if _, err := c.platform.ChannelEdit(c.cfg.ChannelID, &discordgo.ChannelEdit{Name: to}); err != nil {
		return fmt.Errorf("failed to rename channel %s: %w", c.cfg.ChannelID, err)
	}
	log.WithFields(log.Fields{"channel": c.cfg.ChannelID, "from": from, "to": to}).Info("Channel renamed")
	return nil
}

// Run checks on every tick until ctx is cancelled.
func (c *ChannelRenamer) Run(ctx context.Context, interval time.Duration) {
	if err := c.Check(ctx); err != nil {
		log.WithError(err).Error("Error checking channel schedule")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				log.WithError(err).Error("Error checking channel schedule")
			}
		case <-ctx.Done():
			return
		}
	}
}
