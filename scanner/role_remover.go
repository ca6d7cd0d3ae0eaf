package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"slopsbot/model"
	"slopsbot/utils"
)

// RoleRemover is the expiry sweeper: it revokes achievement roles that have not been refreshed within the TTL.
type RoleRemover struct {
	platform    model.Platform
	store       model.Store
	ttl         time.Duration
	concurrency int
	locks       *utils.KeyedMutex
	now         func() time.Time
}

func NewRoleRemover(platform model.Platform, store model.Store, ttl time.Duration) *RoleRemover {
	return &RoleRemover{
		platform:    platform,
		store:       store,
		ttl:         ttl,
		concurrency: 4,
		locks:       utils.NewKeyedMutex(),
		now:         time.Now,
	}
}

// ShareLocks makes the sweeper take the same per-member locks as the role state machine.
func (r *RoleRemover) ShareLocks(locks *utils.KeyedMutex) {
	r.locks = locks
}

// Expired reports whether a grant last refreshed at ts is past the TTL at now.
// A grant exactly ttl old is still valid.
func (r *RoleRemover) Expired(ts, now time.Time) bool {
	return now.Sub(ts) > r.ttl
}

// Sweep checks every stored grant once. Grants whose removal fails stay stored and are retried on the
// next sweep; only failing to list the grants is returned as an error.
func (r *RoleRemover) Sweep(ctx context.Context) (SweepReport, error) {
	grants, err := r.store.ListRoleGrants(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	now := r.now()
	var (
		mu     sync.Mutex
		report = SweepReport{Checked: len(grants)}
	)
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, grant := range grants {
		if !r.Expired(grant.Timestamp, now) {
			continue
		}
		g.Go(func() error {
			removed, err := r.revoke(ctx, grant)
			mu.Lock()
			defer mu.Unlock()
			report.Expired++
			switch {
			case err != nil:
				report.Failed++
			case removed:
				report.Removed++
			default:
				report.Refreshed++
			}
			return nil
		})
	}
	g.Wait()
	return report, nil
}

// revoke removes an expired grant's role and record. The grant is re-read under the member lock;
// one that was refreshed since the listing is left alone and reported as not removed.
func (r *RoleRemover) revoke(ctx context.Context, listed model.RoleGrant) (bool, error) {
	unlock := r.locks.Lock(utils.MemberKey(listed.GuildID, listed.UserID))
	defer unlock()

	grant, err := r.store.FindRoleGrant(ctx, listed.UserID, listed.GuildID)
	if err != nil {
		return false, err
	}
	if grant == nil || grant.Role != listed.Role || !r.Expired(grant.Timestamp, r.now()) {
		return false, nil
	}

	logger := log.WithFields(log.Fields{
		"role":   grant.Role,
		"user":   grant.UserID,
		"name":   grant.DisplayName,
		"server": grant.GuildID,
	})

	role, err := utils.FindRole(r.platform, grant.GuildID, grant.Role)
	if err != nil {
		logger.WithError(err).Error("Error when removing role")
		return false, err
	}
	if err := r.platform.GuildMemberRoleRemove(grant.GuildID, grant.UserID, role.ID); err != nil {
		logger.WithError(err).Error("Error when removing role")
		return false, fmt.Errorf("failed to remove role %s from %s: %w", grant.Role, grant.UserID, err)
	}
	deleted, err := r.store.DeleteRoleGrant(ctx, *grant)
	if err != nil {
		logger.WithError(err).Error("Failed to delete role grant")
		return false, err
	}
	if !deleted {
		return false, r.restore(ctx, logger, *grant, role.ID)
	}
	logger.Info("Role removed")
	return true, nil
}

// restore re-adds a removed role whose grant was extended while the removal was in flight.
func (r *RoleRemover) restore(ctx context.Context, logger *log.Entry, removed model.RoleGrant, roleID string) error {
	current, err := r.store.FindRoleGrant(ctx, removed.UserID, removed.GuildID)
	if err != nil {
		return err
	}
	if current == nil || current.Role != removed.Role {
		return nil
	}
	if err := r.platform.GuildMemberRoleAdd(removed.GuildID, removed.UserID, roleID); err != nil {
		logger.WithError(err).Error("Failed to restore refreshed role")
		return fmt.Errorf("failed to restore role %s to %s: %w", removed.Role, removed.UserID, err)
	}
	logger.Info("Role refreshed during sweep, kept")
	return nil
}

// Run sweeps on every tick until ctx is cancelled.
func (r *RoleRemover) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			report, err := r.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("Error loading role grants for sweep")
				continue
			}
			log.WithFields(log.Fields{
				"checked": report.Checked,
				"expired": report.Expired,
				"removed": report.Removed,
				"failed":  report.Failed,
			}).Debug("Role sweep finished")
		case <-ctx.Done():
			return
		}
	}
}
