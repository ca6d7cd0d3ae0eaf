package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"slopsbot/handlers/achievement"
	"slopsbot/handlers/leaderboard"
	"slopsbot/handlers/pin"
	"slopsbot/model"
	"slopsbot/scanner"
	"slopsbot/utils"
	"slopsbot/utils/database"
	"slopsbot/utils/database/mongostore"
)

type Bot struct {
	Session     *discordgo.Session
	Platform    model.Platform
	Store       model.Store
	Engine      *scanner.TallyEngine
	Leaderboard *leaderboard.Handler
	Sweeper     *scanner.RoleRemover
	Renamer     *scanner.ChannelRenamer
	Started     time.Time

	config    *model.Config
	scheduler *Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	scans     sync.WaitGroup

	scanMu   sync.Mutex
	scanning map[string]bool // channelID -> rescan requested while running
}

func (b *Bot) GetConfig() *model.Config {
	return b.config
}

// Context is cancelled when the bot shuts down.
func (b *Bot) Context() context.Context {
	return b.ctx
}

// New builds the session, the store and every component wired to them. The gateway is not opened.
func New(ctx context.Context, cfg *model.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent | discordgo.IntentsGuildMessageReactions

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	b, err := NewWithPlatform(dg, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	b.Session = dg
	if cfg.LogChannelID != "" {
		log.AddHook(utils.NewChannelHook(dg, cfg.LogChannelID))
	}
	return b, nil
}

// NewWithPlatform wires every component against platform without a gateway session.
// The bot takes ownership of store.
func NewWithPlatform(platform model.Platform, store model.Store, cfg *model.Config) (*Bot, error) {
	granter := achievement.NewGranter(platform, store, cfg.Roles, cfg.SelfReactAttachment)
	pins := pin.NewController(platform, store)
	sweeper := scanner.NewRoleRemover(platform, store, cfg.GrantTTL)
	sweeper.ShareLocks(granter.Locks())
	limit := rate.Limit(cfg.ReactorFetchRate)
	if cfg.ReactorFetchRate <= 0 {
		limit = rate.Inf
	}
	engine := scanner.NewTallyEngine(platform, granter, pins, scanner.TallyOptions{
		Threshold:   cfg.Threshold,
		Limit:       cfg.ScanLimit,
		Stagger:     cfg.ReactionStagger,
		Concurrency: cfg.ScanConcurrency,
		Limiter:     rate.NewLimiter(limit, cfg.ReactorFetchBurst),
	})

	var renamer *scanner.ChannelRenamer
	if cfg.Schedule.Enabled {
		var err error
		renamer, err = scanner.NewChannelRenamer(platform, store, cfg.Schedule)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		Platform:    platform,
		Store:       store,
		Engine:      engine,
		Leaderboard: leaderboard.NewHandler(platform, store, cfg.Roles),
		Sweeper:     sweeper,
		Renamer:     renamer,
		Started:     time.Now(),
		config:      cfg,
		ctx:         ctx,
		cancel:      cancel,
		scanning:    make(map[string]bool),
	}
	b.scheduler = NewScheduler(b.Sweeper, b.Renamer, cfg)
	return b, nil
}

// OpenStore connects the configured persistence backend.
func OpenStore(ctx context.Context, cfg model.StoreConfig) (model.Store, error) {
	switch cfg.Driver {
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB")
		return store, nil
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := database.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.Path).Info("Opened SQLite store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// ScanChannel runs a scan of the channel in the background. A scan requested while one is already
// running for the channel is folded into a single rescan once it finishes. Nothing starts once the
// bot is closing.
func (b *Bot) ScanChannel(channelID, guildID string) {
	b.scanMu.Lock()
	if b.ctx.Err() != nil {
		b.scanMu.Unlock()
		return
	}
	if _, running := b.scanning[channelID]; running {
		b.scanning[channelID] = true
		b.scanMu.Unlock()
		return
	}
	b.scanning[channelID] = false
	b.scans.Add(1)
	b.scanMu.Unlock()

	go func() {
		defer b.scans.Done()
		for {
			b.scanOnce(channelID, guildID)

			b.scanMu.Lock()
			if !b.scanning[channelID] || b.ctx.Err() != nil {
				delete(b.scanning, channelID)
				b.scanMu.Unlock()
				return
			}
			b.scanning[channelID] = false
			b.scanMu.Unlock()
		}
	}()
}

func (b *Bot) scanOnce(channelID, guildID string) {
	report, err := b.Engine.ScanChannel(b.ctx, channelID, guildID)
	logger := log.WithFields(log.Fields{"channel": channelID, "server": guildID})
	if err != nil {
		logger.WithError(err).Error("Error fetching messages")
		return
	}
	for _, err := range report.Errors {
		logger.WithError(err).Warn("Scan item failed")
	}
	logger.WithFields(log.Fields{
		"messages":  report.Messages,
		"reacted":   report.Reacted,
		"decisions": len(report.Decisions),
		"granted":   report.Outcomes[model.OutcomeGranted],
		"extended":  report.Outcomes[model.OutcomeExtended],
		"swapped":   report.Outcomes[model.OutcomeSwapped],
		"pinned":    report.Outcomes[model.OutcomePinned],
		"failed":    report.Outcomes[model.OutcomeFailed],
	}).Debug("Channel scan finished")
}

// Close stops background work, waits for in-flight scans and releases the session and store.
func (b *Bot) Close() {
	log.Info("Gracefully shutting down.")
	b.cancel()
	// Scans admitted before the cancel have been added to the group once the lock is released.
	b.scanMu.Lock()
	b.scanMu.Unlock()
	b.scheduler.Stop()
	b.scans.Wait()
	if b.Session != nil {
		if err := b.Session.Close(); err != nil {
			log.WithError(err).Warn("Error closing session")
		}
	}
	if err := b.Store.Close(); err != nil {
		log.WithError(err).Warn("Error closing store")
	}
}
