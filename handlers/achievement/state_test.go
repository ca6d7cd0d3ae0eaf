package achievement

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopsbot/model"
	"slopsbot/utils/database"
	"slopsbot/utils/platformtest"
)

const guildID = "guild-1"

var roles = model.RoleNames{Red: "Bad pun", Yellow: "Average pun", Green: "Good pun"}

func setup(t *testing.T) (*Granter, *platformtest.Platform, *database.Store, *time.Time) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "slops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := platformtest.New()
	p.AddRole(guildID, "role-red", roles.Red)
	p.AddRole(guildID, "role-yellow", roles.Yellow)
	p.AddRole(guildID, "role-green", roles.Green)

	g := NewGranter(p, store, roles, "")
	now := new(time.Time)
	*now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return *now }
	return g, p, store, now
}

func decision(c model.Category, messageID, userID string) model.Decision {
	return model.Decision{
		Category: c,
		GuildID:  guildID,
		Message: &discordgo.Message{
			ID:        messageID,
			ChannelID: "channel-1",
			Author:    &discordgo.User{ID: userID, Username: userID, GlobalName: "Display " + userID},
		},
	}
}

func TestFirstGrant(t *testing.T) {
	g, p, store, now := setup(t)
	ctx := context.Background()

	outcome, err := g.Apply(ctx, decision(model.CategoryGreen, "m1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeGranted, outcome)
	assert.Equal(t, []platformtest.RoleCall{{GuildID: guildID, UserID: "alice", RoleID: "role-green"}}, p.Adds())

	grant, err := store.FindRoleGrant(ctx, "alice", guildID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, roles.Green, grant.Role)
	assert.Equal(t, "Display alice", grant.DisplayName)
	assert.True(t, grant.Timestamp.Equal(*now))
}

func TestSameMessageIsCardedOnce(t *testing.T) {
	g, p, _, _ := setup(t)
	ctx := context.Background()

	_, err := g.Apply(ctx, decision(model.CategoryRed, "m1", "alice"))
	require.NoError(t, err)
	outcome, err := g.Apply(ctx, decision(model.CategoryRed, "m1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, outcome)
	assert.Len(t, p.Adds(), 1)
}

func TestExtendOnlyAdvancesTimestamp(t *testing.T) {
	g, p, store, now := setup(t)
	ctx := context.Background()

	_, err := g.Apply(ctx, decision(model.CategoryGreen, "m1", "alice"))
	require.NoError(t, err)

	*now = now.Add(3 * time.Hour)
	outcome, err := g.Apply(ctx, decision(model.CategoryGreen, "m2", "alice"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExtended, outcome)

	assert.Len(t, p.Adds(), 1)
	assert.Empty(t, p.Removes())

	grant, err := store.FindRoleGrant(ctx, "alice", guildID)
	require.NoError(t, err)
	assert.True(t, grant.Timestamp.Equal(*now))
}

func TestSwapReplacesHeldRole(t *testing.T) {
	g, p, store, _ := setup(t)
	ctx := context.Background()

	_, err := g.Apply(ctx, decision(model.CategoryRed, "m1", "alice"))
	require.NoError(t, err)
	outcome, err := g.Apply(ctx, decision(model.CategoryGreen, "m2", "alice"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSwapped, outcome)

	assert.Equal(t, []platformtest.RoleCall{{GuildID: guildID, UserID: "alice", RoleID: "role-red"}}, p.Removes())
	assert.Equal(t, []platformtest.RoleCall{
		{GuildID: guildID, UserID: "alice", RoleID: "role-red"},
		{GuildID: guildID, UserID: "alice", RoleID: "role-green"},
	}, p.Adds())

	grants, err := store.ListRoleGrants(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, roles.Green, grants[0].Role)
}

func TestFailedSwapKeepsStoredGrant(t *testing.T) {
	g, p, store, now := setup(t)
	ctx := context.Background()

	_, err := g.Apply(ctx, decision(model.CategoryRed, "m1", "alice"))
	require.NoError(t, err)
	granted := *now

	p.AddErr = func(c platformtest.RoleCall) error {
		if c.RoleID == "role-green" {
			return errors.New("missing permissions")
		}
		return nil
	}
	*now = now.Add(time.Hour)
	outcome, err := g.Apply(ctx, decision(model.CategoryGreen, "m2", "alice"))
	assert.Error(t, err)
	assert.Equal(t, model.OutcomeFailed, outcome)

	grant, err := store.FindRoleGrant(ctx, "alice", guildID)
	require.NoError(t, err)
	assert.Equal(t, roles.Red, grant.Role)
	assert.True(t, grant.Timestamp.Equal(granted))

	// The old role was put back and the card is sealed against retries.
	adds := p.Adds()
	assert.Equal(t, "role-red", adds[len(adds)-1].RoleID)
	exists, err := store.CardExists(ctx, roles.Green, "m2")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMissingRoleLeavesNoGrant(t *testing.T) {
	g, p, store, _ := setup(t)
	ctx := context.Background()
	g.roles.Yellow = "Deleted role"

	outcome, err := g.Apply(ctx, decision(model.CategoryYellow, "m1", "alice"))
	assert.ErrorIs(t, err, model.ErrRoleNotFound)
	assert.Equal(t, model.OutcomeFailed, outcome)
	assert.Empty(t, p.Adds())

	grant, err := store.FindRoleGrant(ctx, "alice", guildID)
	require.NoError(t, err)
	assert.Nil(t, grant)

	exists, err := store.CardExists(ctx, "Deleted role", "m1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConcurrentDecisionsKeepOneGrant(t *testing.T) {
	g, _, store, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, c := range []model.Category{model.CategoryRed, model.CategoryYellow, model.CategoryGreen, model.CategoryRed} {
		wg.Add(1)
		go func(i int, c model.Category) {
			defer wg.Done()
			_, err := g.Apply(ctx, decision(c, string(rune('a'+i)), "alice"))
			assert.NoError(t, err)
		}(i, c)
	}
	wg.Wait()

	grants, err := store.ListRoleGrants(ctx)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestSelfReactionRepliesOnce(t *testing.T) {
	g, p, _, _ := setup(t)
	ctx := context.Background()
	d := decision(model.CategoryRed, "m1", "alice")
	d.SelfReaction = true

	_, err := g.Apply(ctx, d)
	require.NoError(t, err)
	_, err = g.Apply(ctx, d)
	require.NoError(t, err)

	sent := p.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, SelfReactReply, sent[0].Content)
}
