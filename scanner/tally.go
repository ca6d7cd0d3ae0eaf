package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"slopsbot/model"
)

// TallyOptions tunes the scan.
type TallyOptions struct {
	Threshold   int
	Limit       int           // messages per scan, at most 100
	Stagger     time.Duration // delay between per-reaction steps on one message
	Concurrency int           // messages evaluated in parallel
	Limiter     *rate.Limiter // throttles reactor-list fetches; nil disables
}

// TallyEngine scans recent channel messages and turns reaction counts into decisions.
type TallyEngine struct {
	platform model.Platform
	roles    RoleApplier
	pins     MessagePinner
	opts     TallyOptions
}

func NewTallyEngine(platform model.Platform, roles RoleApplier, pins MessagePinner, opts TallyOptions) *TallyEngine {
	if opts.Threshold < 1 {
		opts.Threshold = 5
	}
	if opts.Limit < 1 || opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &TallyEngine{platform: platform, roles: roles, pins: pins, opts: opts}
}

// ScanChannel evaluates the most recent messages of a channel and applies every decision they produce.
// It returns once all messages and decisions have finished; per-item failures land in the report.
func (e *TallyEngine) ScanChannel(ctx context.Context, channelID, guildID string) (*ScanReport, error) {
	messages, err := e.platform.ChannelMessages(channelID, e.opts.Limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for channel %s: %w", channelID, err)
	}

	report := newScanReport(channelID)
	report.Messages = len(messages)

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Concurrency)
	for _, m := range messages {
		if len(m.Reactions) == 0 || m.Author == nil {
			continue
		}
		report.markReacted()
		g.Go(func() error {
			e.processMessage(ctx, m, guildID, report)
			return nil
		})
	}
	g.Wait()

	return report, nil
}

func (e *TallyEngine) processMessage(ctx context.Context, m *discordgo.Message, guildID string, report *ScanReport) {
	decisions, err := e.Tally(ctx, m, guildID)
	if err != nil {
		log.WithError(err).WithField("message", m.ID).Warn("Skipping message, reaction tally incomplete")
		report.addError(err)
		return
	}

	var wg sync.WaitGroup
	for _, d := range decisions {
		report.addDecision(d)
		wg.Add(1)
		go func(d model.Decision) {
			defer wg.Done()
			outcome, err := e.apply(ctx, d)
			report.addOutcome(outcome)
			if err != nil {
				report.addError(fmt.Errorf("%s on message %s: %w", d.Category, m.ID, err))
			}
		}(d)
	}
	wg.Wait()
}

func (e *TallyEngine) apply(ctx context.Context, d model.Decision) (model.Outcome, error) {
	if d.Category == model.CategoryPin {
		return e.pins.Pin(ctx, d.Message, d.GuildID)
	}
	return e.roles.Apply(ctx, d)
}

type tally struct {
	mu         sync.Mutex
	counts     map[model.Category]int
	selfReacts bool
}

// Tally reads every reaction on m and returns the decisions whose threshold is met.
// Each reaction is evaluated in its own staggered step; the result is only used once all of them
// have reported, and any failed step discards the whole message for this scan.
func (e *TallyEngine) Tally(ctx context.Context, m *discordgo.Message, guildID string) ([]model.Decision, error) {
	if len(m.Reactions) == 0 {
		return nil, nil
	}

	t := &tally{counts: make(map[model.Category]int)}
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range m.Reactions {
		delay := time.Duration(i) * e.opts.Stagger
		g.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return e.countReaction(gctx, m, r, t)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.decide(m, guildID, t), nil
}

func (e *TallyEngine) countReaction(ctx context.Context, m *discordgo.Message, r *discordgo.MessageReactions, t *tally) error {
	if r == nil || r.Emoji == nil {
		return nil
	}
	category, ok := model.CategoryForEmoji(r.Emoji.Name)
	if !ok {
		return nil
	}

	selfReact := false
	if category == model.CategoryGreen {
		var err error
		selfReact, err = e.authorReacted(ctx, m, r.Emoji)
		if err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[category] = r.Count
	if selfReact {
		t.selfReacts = true
	}
	return nil
}

func (e *TallyEngine) authorReacted(ctx context.Context, m *discordgo.Message, emoji *discordgo.Emoji) (bool, error) {
	if e.opts.Limiter != nil {
		if err := e.opts.Limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	users, err := e.platform.MessageReactions(m.ChannelID, m.ID, emoji.APIName(), 100, "", "")
	if err != nil {
		return false, fmt.Errorf("failed to fetch reactors for message %s: %w", m.ID, err)
	}
	for _, u := range users {
		if u.ID == m.Author.ID {
			return true, nil
		}
	}
	return false, nil
}

// decide applies the threshold rule. A green self-reaction is redirected into a single red decision
// and never also counts toward green.
func (e *TallyEngine) decide(m *discordgo.Message, guildID string, t *tally) []model.Decision {
	var decisions []model.Decision
	add := func(c model.Category, self bool) {
		decisions = append(decisions, model.Decision{Category: c, Message: m, GuildID: guildID, SelfReaction: self})
	}

	if t.selfReacts {
		add(model.CategoryRed, true)
	} else if t.counts[model.CategoryRed] >= e.opts.Threshold {
		add(model.CategoryRed, false)
	}
	if t.counts[model.CategoryYellow] >= e.opts.Threshold {
		add(model.CategoryYellow, false)
	}
	if !t.selfReacts && t.counts[model.CategoryGreen] >= e.opts.Threshold {
		add(model.CategoryGreen, false)
	}
	if t.counts[model.CategoryPin] >= e.opts.Threshold {
		add(model.CategoryPin, false)
	}
	return decisions
}
