package bot

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"slopsbot/model"
	"slopsbot/utils/platformtest"
)

const (
	testGuild   = "guild-1"
	testChannel = "channel-1"
)

var ignoreDBOpener = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	return &model.Config{
		Store: model.StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "data", "slops.db"),
		},
		Roles:             model.RoleNames{Red: "Bad pun", Yellow: "Average pun", Green: "Good pun"},
		Threshold:         5,
		ScanLimit:         100,
		ScanConcurrency:   2,
		ReactionStagger:   time.Millisecond,
		ReactorFetchBurst: 1,
		SweepInterval:     time.Hour,
		GrantTTL:          24 * time.Hour,
	}
}

func newTestBot(t *testing.T, cfg *model.Config) (*Bot, *platformtest.Platform) {
	t.Helper()
	p := platformtest.New()
	p.AddRole(testGuild, "role-red", cfg.Roles.Red)
	p.AddRole(testGuild, "role-yellow", cfg.Roles.Yellow)
	p.AddRole(testGuild, "role-green", cfg.Roles.Green)

	store, err := OpenStore(context.Background(), cfg.Store)
	require.NoError(t, err)
	b, err := NewWithPlatform(p, store, cfg)
	require.NoError(t, err)
	return b, p
}

func greenMessage(id string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: testChannel,
		Author:    &discordgo.User{ID: "alice", Username: "alice"},
		Reactions: []*discordgo.MessageReactions{
			{Count: 5, Emoji: &discordgo.Emoji{Name: model.EmojiGreen}},
		},
	}
}

func TestScanChannelAppliesDecisions(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDBOpener)

	b, p := newTestBot(t, testConfig(t))
	p.AddMessage(greenMessage("m1"))

	b.ScanChannel(testChannel, testGuild)
	b.Close()

	assert.Equal(t, []platformtest.RoleCall{{GuildID: testGuild, UserID: "alice", RoleID: "role-green"}}, p.Adds())
}

func TestScanChannelCoalescesBursts(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDBOpener)

	b, p := newTestBot(t, testConfig(t))
	p.AddMessage(greenMessage("m1"))

	for i := 0; i < 20; i++ {
		b.ScanChannel(testChannel, testGuild)
	}
	b.Close()

	assert.Len(t, p.Adds(), 1)
	b.scanMu.Lock()
	assert.Empty(t, b.scanning)
	b.scanMu.Unlock()
}

func TestScanChannelAfterCloseStartsNothing(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDBOpener)

	b, p := newTestBot(t, testConfig(t))
	p.AddMessage(greenMessage("m1"))
	b.Close()

	b.ScanChannel(testChannel, testGuild)

	assert.Empty(t, p.Adds())
	b.scanMu.Lock()
	assert.Empty(t, b.scanning)
	b.scanMu.Unlock()
}

func TestScanChannelRacingClose(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDBOpener)

	b, p := newTestBot(t, testConfig(t))
	p.AddMessage(greenMessage("m1"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.ScanChannel(testChannel, testGuild)
			}
		}()
	}
	b.Close()
	wg.Wait()

	b.scanMu.Lock()
	assert.Empty(t, b.scanning)
	b.scanMu.Unlock()
}

func TestSchedulerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreDBOpener)

	cfg := testConfig(t)
	cfg.Schedule = model.ScheduleConfig{
		Enabled:        true,
		ChannelID:      "general",
		NightName:      "night-general",
		NightStartHour: 0,
		DayStartHour:   7,
		Timezone:       "UTC",
		Interval:       time.Hour,
	}
	b, p := newTestBot(t, cfg)
	p.Channels["general"] = &discordgo.Channel{ID: "general", Name: "general"}
	require.NotNil(t, b.Renamer)

	b.scheduler.Start(context.Background())
	b.scheduler.Start(context.Background())
	b.Close()
	b.scheduler.Stop()
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), model.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
