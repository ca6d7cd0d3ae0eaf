package scanner

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slopsbot/handlers/achievement"
	"slopsbot/handlers/pin"
	"slopsbot/model"
	"slopsbot/utils/database"
	"slopsbot/utils/platformtest"
)

const (
	testGuild   = "guild-1"
	testChannel = "channel-1"
)

var testRoles = model.RoleNames{Red: "Bad pun", Yellow: "Average pun", Green: "Good pun"}

type harness struct {
	platform *platformtest.Platform
	store    *database.Store
	engine   *TallyEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "slops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := platformtest.New()
	p.AddRole(testGuild, "role-red", testRoles.Red)
	p.AddRole(testGuild, "role-yellow", testRoles.Yellow)
	p.AddRole(testGuild, "role-green", testRoles.Green)

	granter := achievement.NewGranter(p, store, testRoles, filepath.Join(t.TempDir(), "missing.png"))
	pins := pin.NewController(p, store)
	engine := NewTallyEngine(p, granter, pins, TallyOptions{
		Threshold:   5,
		Limit:       100,
		Stagger:     time.Millisecond,
		Concurrency: 4,
	})
	return &harness{platform: p, store: store, engine: engine}
}

func reactedMessage(id string, author *discordgo.User, content string, counts map[string]int) *discordgo.Message {
	m := &discordgo.Message{ID: id, ChannelID: testChannel, Author: author, Content: content}
	for emoji, n := range counts {
		m.Reactions = append(m.Reactions, &discordgo.MessageReactions{
			Count: n,
			Emoji: &discordgo.Emoji{Name: emoji},
		})
	}
	return m
}

func TestScanAppliesThresholdPerCategory(t *testing.T) {
	h := newHarness(t)
	author := &discordgo.User{ID: "alice", Username: "alice"}
	h.platform.AddMessage(reactedMessage("m1", author, "a pun", map[string]int{
		model.EmojiRed:   4,
		model.EmojiGreen: 5,
		model.EmojiPin:   6,
		"👍":              9,
	}))

	report, err := h.engine.ScanChannel(context.Background(), testChannel, testGuild)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	var categories []model.Category
	for _, d := range report.Decisions {
		categories = append(categories, d.Category)
	}
	assert.ElementsMatch(t, []model.Category{model.CategoryGreen, model.CategoryPin}, categories)
	assert.Equal(t, 1, report.Outcomes[model.OutcomeGranted])
	assert.Equal(t, 1, report.Outcomes[model.OutcomePinned])

	assert.Equal(t, []platformtest.RoleCall{{GuildID: testGuild, UserID: "alice", RoleID: "role-green"}}, h.platform.Adds())
	assert.Equal(t, []string{"m1"}, h.platform.Pins())

	exists, err := h.store.CardExists(context.Background(), testRoles.Red, "m1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestScanSkipsMessagesWithoutReactions(t *testing.T) {
	h := newHarness(t)
	h.platform.AddMessage(&discordgo.Message{ID: "m1", ChannelID: testChannel, Author: &discordgo.User{ID: "alice"}})

	report, err := h.engine.ScanChannel(context.Background(), testChannel, testGuild)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Messages)
	assert.Equal(t, 0, report.Reacted)
	assert.Empty(t, report.Decisions)
	assert.Empty(t, h.platform.Adds())
}

func TestRescanDoesNotReprocess(t *testing.T) {
	h := newHarness(t)
	author := &discordgo.User{ID: "alice"}
	h.platform.AddMessage(reactedMessage("m1", author, "", map[string]int{model.EmojiYellow: 7, model.EmojiPin: 5}))

	ctx := context.Background()
	_, err := h.engine.ScanChannel(ctx, testChannel, testGuild)
	require.NoError(t, err)
	report, err := h.engine.ScanChannel(ctx, testChannel, testGuild)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Outcomes[model.OutcomeSkipped])
	assert.Len(t, h.platform.Adds(), 1)
	assert.Len(t, h.platform.Pins(), 1)

	counts, err := h.store.CountCards(ctx, testGuild, testRoles.Yellow)
	require.NoError(t, err)
	assert.Equal(t, []model.UserCount{{UserID: "alice", Count: 1}}, counts)
}

func TestConcurrentScansGrantOnce(t *testing.T) {
	h := newHarness(t)
	for i, id := range []string{"m1", "m2", "m3"} {
		author := &discordgo.User{ID: "user-" + id}
		h.platform.AddMessage(reactedMessage(id, author, "", map[string]int{model.EmojiGreen: 5 + i, model.EmojiPin: 5}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.ScanChannel(context.Background(), testChannel, testGuild)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.platform.Adds(), 3)
	assert.Len(t, h.platform.Pins(), 3)
	grants, err := h.store.ListRoleGrants(context.Background())
	require.NoError(t, err)
	assert.Len(t, grants, 3)
}

func TestSelfReactionRedirectsToRed(t *testing.T) {
	h := newHarness(t)
	author := &discordgo.User{ID: "alice"}
	h.platform.AddMessage(reactedMessage("m1", author, "look at me", map[string]int{model.EmojiGreen: 6}))
	h.platform.SetReactors("m1", model.EmojiGreen, &discordgo.User{ID: "bob"}, author)

	ctx := context.Background()
	report, err := h.engine.ScanChannel(ctx, testChannel, testGuild)
	require.NoError(t, err)
	require.Len(t, report.Decisions, 1)
	assert.Equal(t, model.CategoryRed, report.Decisions[0].Category)
	assert.True(t, report.Decisions[0].SelfReaction)

	assert.Equal(t, []platformtest.RoleCall{{GuildID: testGuild, UserID: "alice", RoleID: "role-red"}}, h.platform.Adds())

	_, err = h.engine.ScanChannel(ctx, testChannel, testGuild)
	require.NoError(t, err)

	sent := h.platform.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, achievement.SelfReactReply, sent[0].Content)
	assert.Equal(t, "m1", sent[0].ReplyTo)

	exists, err := h.store.CardExists(ctx, testRoles.Green, "m1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGreenFromOthersIsNotRedirected(t *testing.T) {
	h := newHarness(t)
	author := &discordgo.User{ID: "alice"}
	h.platform.AddMessage(reactedMessage("m1", author, "", map[string]int{model.EmojiGreen: 5}))
	h.platform.SetReactors("m1", model.EmojiGreen, &discordgo.User{ID: "bob"})

	report, err := h.engine.ScanChannel(context.Background(), testChannel, testGuild)
	require.NoError(t, err)
	require.Len(t, report.Decisions, 1)
	assert.Equal(t, model.CategoryGreen, report.Decisions[0].Category)
	assert.Empty(t, h.platform.Sent())
}

func TestScanRespectsLimit(t *testing.T) {
	h := newHarness(t)
	h.engine.opts.Limit = 1
	h.platform.AddMessage(reactedMessage("old", &discordgo.User{ID: "alice"}, "", map[string]int{model.EmojiRed: 5}))
	h.platform.AddMessage(reactedMessage("new", &discordgo.User{ID: "bob"}, "", map[string]int{model.EmojiRed: 5}))

	_, err := h.engine.ScanChannel(context.Background(), testChannel, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []platformtest.RoleCall{{GuildID: testGuild, UserID: "bob", RoleID: "role-red"}}, h.platform.Adds())
}
