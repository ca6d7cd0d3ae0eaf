package scanner

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"slopsbot/model"
)

// RoleApplier applies a role decision (achievement.Granter).
type RoleApplier interface {
	Apply(ctx context.Context, d model.Decision) (model.Outcome, error)
}

// MessagePinner pins a qualifying message (pin.Controller).
type MessagePinner interface {
	Pin(ctx context.Context, m *discordgo.Message, guildID string) (model.Outcome, error)
}

// ScanReport summarises one channel scan. Every message and decision is accounted for, failures included.
type ScanReport struct {
	mu sync.Mutex

	ChannelID string
	Messages  int
	Reacted   int
	Decisions []model.Decision
	Outcomes  map[model.Outcome]int
	Errors    []error
}

func newScanReport(channelID string) *ScanReport {
	return &ScanReport{ChannelID: channelID, Outcomes: make(map[model.Outcome]int)}
}

func (r *ScanReport) addError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

func (r *ScanReport) addDecision(d model.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, d)
}

func (r *ScanReport) addOutcome(o model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes[o]++
}

func (r *ScanReport) markReacted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reacted++
}

// SweepReport summarises one expiry sweep.
type SweepReport struct {
	Checked   int
	Expired   int
	Removed   int
	Refreshed int // expired when listed, extended or swapped before the revoke finished
	Failed    int
}
