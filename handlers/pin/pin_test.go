package pin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopsbot/handlers/leaderboard"
	"slopsbot/model"
	"slopsbot/utils/database"
	"slopsbot/utils/platformtest"
)

func newController(t *testing.T) (*Controller, *platformtest.Platform, *database.Store) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "slops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	p := platformtest.New()
	return NewController(p, store), p, store
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "channel-1",
		Content:   content,
		Author:    &discordgo.User{ID: "alice", Username: "alice"},
	}
}

func TestPinOnce(t *testing.T) {
	c, p, store := newController(t)
	ctx := context.Background()
	m := message("m1", "a pun")

	outcome, err := c.Pin(ctx, m, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePinned, outcome)

	outcome, err = c.Pin(ctx, m, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, outcome)

	assert.Equal(t, []string{"m1"}, p.Pins())
	assert.Empty(t, p.Sent())

	counts, err := store.CountPins(ctx, "guild-1")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, model.UserCount{UserID: "alice", Count: 1}, counts[0])
}

func TestNoPinDirectiveIsAnsweredOnce(t *testing.T) {
	c, p, _ := newController(t)
	ctx := context.Background()
	m := message("m1", "please NO PIN this")

	for i := 0; i < 2; i++ {
		_, err := c.Pin(ctx, m, "guild-1")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"m1"}, p.Pins())
	sent := p.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, NoPinReply, sent[0].Content)
	assert.Equal(t, "m1", sent[0].ReplyTo)
}

func TestPinCeilingRepliesOnceAndCountsNothing(t *testing.T) {
	c, p, store := newController(t)
	ctx := context.Background()
	p.PinErr = platformtest.RESTError(maxPinsReachedCode, "Maximum number of pins reached (50)")
	m := message("m1", "a pun")

	outcome, err := c.Pin(ctx, m, "guild-1")
	assert.Error(t, err)
	assert.Equal(t, model.OutcomeFailed, outcome)

	outcome, err = c.Pin(ctx, m, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, outcome)

	sent := p.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, PinCeilingReply, sent[0].Content)

	counts, err := store.CountPins(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, counts)

	h := leaderboard.NewHandler(p, store, model.RoleNames{})
	lb := message("cmd", "!lb pins")
	lb.GuildID = "guild-1"
	require.NoError(t, h.Handle(ctx, lb))
	sent = p.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "No pins counted yet.", sent[1].Content)
}

func TestTransientFailureReleasesClaim(t *testing.T) {
	c, p, _ := newController(t)
	ctx := context.Background()
	p.PinErr = errors.New("gateway timeout")
	m := message("m1", "a pun")

	_, err := c.Pin(ctx, m, "guild-1")
	assert.Error(t, err)

	p.PinErr = nil
	outcome, err := c.Pin(ctx, m, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePinned, outcome)
	assert.Equal(t, []string{"m1", "m1"}, p.Pins())
	assert.Empty(t, p.Sent())
}

func TestHasNoPinDirective(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"no pin", true},
		{"No Pin please", true},
		{"I said NO PIN!", true},
		{"no pins", true},
		{"please no pins on this one", true},
		{"no pinning", true},
		{"nopin", false},
		{"piano pin", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasNoPinDirective(tt.content), tt.content)
	}
}

func TestIsPinCeiling(t *testing.T) {
	assert.True(t, IsPinCeiling(platformtest.RESTError(maxPinsReachedCode, "Maximum number of pins reached (50)")))
	assert.True(t, IsPinCeiling(fmt.Errorf("pin: %w", platformtest.RESTError(maxPinsReachedCode, "full"))))
	assert.True(t, IsPinCeiling(errors.New("HTTP 400: Maximum number of pins reached (50)")))
	assert.False(t, IsPinCeiling(platformtest.RESTError(50013, "Missing Permissions")))
	assert.False(t, IsPinCeiling(errors.New("timeout")))
}
