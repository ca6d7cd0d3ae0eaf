package bot

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"slopsbot/model"
	"slopsbot/scanner"
)

// Scheduler manages all scheduled tasks.
type Scheduler struct {
	sweeper *scanner.RoleRemover
	renamer *scanner.ChannelRenamer
	cfg     *model.Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a new scheduler. renamer may be nil when the day/night schedule is disabled.
func NewScheduler(sweeper *scanner.RoleRemover, renamer *scanner.ChannelRenamer, cfg *model.Config) *Scheduler {
	return &Scheduler{sweeper: sweeper, renamer: renamer, cfg: cfg}
}

// Start begins all scheduled tasks. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.WithField("interval", s.cfg.SweepInterval).Info("Starting role expiry sweeper")
		s.sweeper.Run(ctx, s.cfg.SweepInterval)
	}()

	if s.renamer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.WithField("channel", s.cfg.Schedule.ChannelID).Info("Starting day/night channel schedule")
			s.renamer.Run(ctx, s.cfg.Schedule.Interval)
		}()
	}
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	log.Info("Stopping scheduler...")
	s.wg.Wait()
	log.Info("Scheduler stopped.")
}
