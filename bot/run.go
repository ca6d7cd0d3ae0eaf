package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Run opens the gateway, starts the scheduler and blocks until an interrupt signal arrives.
func (b *Bot) Run() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	b.scheduler.Start(b.ctx)

	log.Info("Bot is now running. Press CTRL-C to exit.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case sig := <-sc:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-b.ctx.Done():
	}
	signal.Stop(sc)
	return nil
}
