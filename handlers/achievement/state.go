// Package achievement applies role decisions: first grant, extend, or swap of a user's achievement role.
package achievement

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"slopsbot/model"
	"slopsbot/utils"
)

// SelfReactReply is sent once when an author reacts green to their own message.
const SelfReactReply = "Reacting to your own message? That's a red square from us."

// Granter runs the per-(user, guild) role state machine.
type Granter struct {
	platform      model.Platform
	store         model.Store
	roles         model.RoleNames
	selfReactFile string
	locks         *utils.KeyedMutex
	now           func() time.Time
}

func NewGranter(platform model.Platform, store model.Store, roles model.RoleNames, selfReactFile string) *Granter {
	return &Granter{
		platform:      platform,
		store:         store,
		roles:         roles,
		selfReactFile: selfReactFile,
		locks:         utils.NewKeyedMutex(),
		now:           time.Now,
	}
}

// Locks returns the per-member locks guarding role transitions, for sharing with the sweeper.
func (g *Granter) Locks() *utils.KeyedMutex {
	return g.locks
}

// Apply processes a role decision. The (role, message) card is claimed first; a decision whose card
// already exists is skipped. The card stays written even if the platform rejects the role change.
func (g *Granter) Apply(ctx context.Context, d model.Decision) (model.Outcome, error) {
	roleName := g.roles.For(d.Category)
	if roleName == "" {
		return model.OutcomeFailed, fmt.Errorf("category %q has no role", d.Category)
	}
	m := d.Message
	if m == nil || m.Author == nil {
		return model.OutcomeFailed, fmt.Errorf("decision has no message author")
	}

	claimed, err := g.store.ClaimCard(ctx, model.CardRecord{
		Role:      roleName,
		MessageID: m.ID,
		UserID:    m.Author.ID,
		GuildID:   d.GuildID,
	})
	if err != nil {
		return model.OutcomeFailed, err
	}
	if !claimed {
		return model.OutcomeSkipped, nil
	}

	logger := log.WithFields(log.Fields{
		"role":    roleName,
		"user":    m.Author.ID,
		"name":    utils.DisplayName(m.Author),
		"message": m.ID,
		"server":  d.GuildID,
	})

	if d.SelfReaction {
		if err := utils.ReplyWithFile(g.platform, m, SelfReactReply, g.selfReactFile); err != nil {
			logger.WithError(err).Warn("Failed to send self-reaction reply")
		}
	}

	unlock := g.locks.Lock(utils.MemberKey(d.GuildID, m.Author.ID))
	defer unlock()

	current, err := g.store.FindRoleGrant(ctx, m.Author.ID, d.GuildID)
	if err != nil {
		return model.OutcomeFailed, err
	}

	switch {
	case current == nil:
		return g.grant(ctx, logger, d, roleName)
	case current.Role == roleName:
		return g.extend(ctx, logger, d, current)
	default:
		return g.swap(ctx, logger, d, current, roleName)
	}
}

func (g *Granter) grant(ctx context.Context, logger *log.Entry, d model.Decision, roleName string) (model.Outcome, error) {
	m := d.Message
	role, err := utils.FindRole(g.platform, d.GuildID, roleName)
	if err != nil {
		logger.WithError(err).Error("Error when adding role")
		return model.OutcomeFailed, err
	}
	if err := g.platform.GuildMemberRoleAdd(d.GuildID, m.Author.ID, role.ID); err != nil {
		logger.WithError(err).Error("Error when adding role")
		return model.OutcomeFailed, fmt.Errorf("failed to add role %s: %w", roleName, err)
	}

	err = g.store.InsertRoleGrant(ctx, model.RoleGrant{
		UserID:      m.Author.ID,
		GuildID:     d.GuildID,
		Role:        roleName,
		DisplayName: utils.DisplayName(m.Author),
		Timestamp:   g.now(),
	})
	if err != nil {
		return model.OutcomeFailed, err
	}
	logger.Info("Role given")
	logger.Debug(m.Content)
	return model.OutcomeGranted, nil
}

func (g *Granter) extend(ctx context.Context, logger *log.Entry, d model.Decision, current *model.RoleGrant) (model.Outcome, error) {
	updated := *current
	updated.DisplayName = utils.DisplayName(d.Message.Author)
	updated.Timestamp = g.now()
	if err := g.store.UpdateRoleGrant(ctx, updated); err != nil {
		return model.OutcomeFailed, err
	}
	logger.Info("Role extended")
	logger.Debug(d.Message.Content)
	return model.OutcomeExtended, nil
}

// swap replaces the held role. The stored grant only changes after both platform calls succeed.
func (g *Granter) swap(ctx context.Context, logger *log.Entry, d model.Decision, current *model.RoleGrant, roleName string) (model.Outcome, error) {
	m := d.Message
	logger = logger.WithField("old_role", current.Role)

	newRole, err := utils.FindRole(g.platform, d.GuildID, roleName)
	if err != nil {
		logger.WithError(err).Error("Error when switching roles")
		return model.OutcomeFailed, err
	}
	oldRole, err := utils.FindRole(g.platform, d.GuildID, current.Role)
	if err != nil {
		logger.WithError(err).Error("Error when switching roles")
		return model.OutcomeFailed, err
	}

	if err := g.platform.GuildMemberRoleRemove(d.GuildID, m.Author.ID, oldRole.ID); err != nil {
		logger.WithError(err).Error("Error when switching roles")
		return model.OutcomeFailed, fmt.Errorf("failed to remove role %s: %w", current.Role, err)
	}
	if err := g.platform.GuildMemberRoleAdd(d.GuildID, m.Author.ID, newRole.ID); err != nil {
		logger.WithError(err).Error("Error when switching roles")
		// Put the old role back so the member matches the stored grant.
		if rerr := g.platform.GuildMemberRoleAdd(d.GuildID, m.Author.ID, oldRole.ID); rerr != nil {
			logger.WithError(rerr).Error("Failed to restore previous role")
		}
		return model.OutcomeFailed, fmt.Errorf("failed to add role %s: %w", roleName, err)
	}

	updated := *current
	updated.Role = roleName
	updated.DisplayName = utils.DisplayName(m.Author)
	updated.Timestamp = g.now()
	if err := g.store.UpdateRoleGrant(ctx, updated); err != nil {
		return model.OutcomeFailed, err
	}
	logger.Info("Role changed")
	logger.Debug(m.Content)
	return model.OutcomeSwapped, nil
}
