package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
	"go.uber.org/zap"
)

// Conversation is a resolved message target: the target plus the channel
// or group row behind it. Exactly one of Channel and Group is set.
type Conversation struct {
	Target  models.Target
	Channel *models.Channel
	Group   *models.Group
}

// IsDM reports whether the conversation is a direct message.
func (c *Conversation) IsDM() bool {
	return c.Group != nil && c.Group.IsDM
}

// Access owns membership rows and answers who may read or write where.
// Every other component asks it before touching state.
type Access struct {
	channels repository.ChannelRepository
	groups   repository.GroupRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	logger   *zap.Logger
}

func NewAccess(
	channels repository.ChannelRepository,
	groups repository.GroupRepository,
	members repository.MembershipRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) *Access {
	return &Access{
		channels: channels,
		groups:   groups,
		members:  members,
		users:    users,
		logger:   logger,
	}
}

// Resolve loads the conversation within the tenant. Ids from another
// tenant resolve to NotFound.
func (a *Access) Resolve(ctx context.Context, tenantID uuid.UUID, target models.Target) (*Conversation, error) {
	switch target.Kind() {
	case models.KindChannel:
		ch, err := a.channels.GetByID(ctx, tenantID, target.ID())
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, ErrChannelNotFound
		}
		return &Conversation{Target: target, Channel: ch}, nil
	case models.KindGroup:
		g, err := a.groups.GetByID(ctx, tenantID, target.ID())
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, ErrGroupNotFound
		}
		return &Conversation{Target: target, Group: g}, nil
	default:
		return nil, ErrInvalidTarget
	}
}

// IsMember reports whether userID has a membership row in the conversation.
func (a *Access) IsMember(ctx context.Context, target models.Target, userID uuid.UUID) (bool, error) {
	m, err := a.members.Get(ctx, target, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// CanWrite reports whether userID may post into the conversation.
func (a *Access) CanWrite(ctx context.Context, conv *Conversation, userID uuid.UUID) (bool, error) {
	_, err := a.requireWrite(ctx, conv, userID)
	switch {
	case err == nil:
		return true, nil
	case KindOf(err) == KindForbidden:
		return false, nil
	default:
		return false, err
	}
}

// requireRead passes for members, and for anyone in the tenant when the
// channel is open to the tenant. The returned member may be nil.
func (a *Access) requireRead(ctx context.Context, conv *Conversation, userID uuid.UUID) (*models.Member, error) {
	m, err := a.members.Get(ctx, conv.Target, userID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	if conv.Channel != nil && conv.Channel.Type.OpenToTenant() {
		return nil, nil
	}
	return nil, ErrMembershipRequired
}

// requireMember passes only with a membership row in a live conversation.
func (a *Access) requireMember(ctx context.Context, conv *Conversation, userID uuid.UUID) (*models.Member, error) {
	m, err := a.members.Get(ctx, conv.Target, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMembershipRequired
	}
	if conv.Channel != nil && conv.Channel.IsArchived {
		return nil, ErrArchived
	}
	return m, nil
}

// requireWrite adds the read-only rule on top of requireMember: read-only
// channels accept posts from owners and admins only.
func (a *Access) requireWrite(ctx context.Context, conv *Conversation, userID uuid.UUID) (*models.Member, error) {
	m, err := a.requireMember(ctx, conv, userID)
	if err != nil {
		return nil, err
	}
	if conv.Channel != nil && conv.Channel.IsReadOnly && !m.Role.Privileged() {
		return nil, ErrReadOnly
	}
	return m, nil
}

// requireManager passes for owners and admins of the conversation.
func (a *Access) requireManager(ctx context.Context, conv *Conversation, userID uuid.UUID) (*models.Member, error) {
	m, err := a.members.Get(ctx, conv.Target, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.Role.Privileged() {
		return nil, ErrForbidden
	}
	return m, nil
}

// requireTenantUser checks that userID exists in the tenant.
func (a *Access) requireTenantUser(ctx context.Context, tenantID, userID uuid.UUID) error {
	u, err := a.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	return nil
}

// requireTenantUsers checks a batch of ids in one lookup.
func (a *Access) requireTenantUsers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	missing, err := a.users.MissingFromTenant(ctx, tenantID, userIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		a.logger.Debug("unknown users rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("missing", len(missing)),
			zap.String("first", missing[0].String()),
		)
		return ErrUserNotFound
	}
	return nil
}

// AddMember enrolls userID with role. Anyone may join an open channel as a
// plain member; everything else needs an owner or admin, and granting
// owner needs an owner.
func (a *Access) AddMember(ctx context.Context, actor models.Identity, target models.Target, userID uuid.UUID, role models.Role) (*models.Member, error) {
	if _, ok := models.ParseRole(string(role)); !ok || role == "" {
		return nil, ErrInvalidRole
	}
	conv, err := a.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return nil, err
	}
	if conv.IsDM() {
		return nil, ErrDMMembership
	}
	if conv.Channel != nil && conv.Channel.IsArchived {
		return nil, ErrArchived
	}

	selfJoin := userID == actor.UserID && role == models.RoleMember &&
		conv.Channel != nil && conv.Channel.Type.OpenToTenant()
	if !selfJoin {
		manager, err := a.requireManager(ctx, conv, actor.UserID)
		if err != nil {
			return nil, err
		}
		if role == models.RoleOwner && manager.Role != models.RoleOwner {
			return nil, ErrOwnerRequired
		}
	}

	if err := a.requireTenantUser(ctx, actor.TenantID, userID); err != nil {
		return nil, err
	}

	m, err := a.members.Add(ctx, target, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("add member: %w", err)
	}

	a.logger.Info("member added",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("conversation", target.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
	)
	return m, nil
}

// RemoveMember deletes a membership row. Members may always leave; removing
// someone else needs an owner or admin, and removing an owner needs an owner.
// Message history is untouched.
func (a *Access) RemoveMember(ctx context.Context, actor models.Identity, target models.Target, userID uuid.UUID) error {
	conv, err := a.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return err
	}
	if conv.IsDM() {
		return ErrDMMembership
	}

	if userID != actor.UserID {
		manager, err := a.requireManager(ctx, conv, actor.UserID)
		if err != nil {
			return err
		}
		victim, err := a.members.Get(ctx, target, userID)
		if err != nil {
			return err
		}
		if victim == nil {
			return ErrNotMember
		}
		if victim.Role == models.RoleOwner && manager.Role != models.RoleOwner {
			return ErrOwnerRequired
		}
	}

	if err := a.members.Remove(ctx, target, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("remove member: %w", err)
	}

	a.logger.Info("member removed",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("conversation", target.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// ListMembers returns the members of a conversation the caller can read.
func (a *Access) ListMembers(ctx context.Context, actor models.Identity, target models.Target) ([]models.Member, error) {
	conv, err := a.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return nil, err
	}
	if _, err := a.requireRead(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}
	return a.members.List(ctx, target)
}

// SetMuted changes the caller's own mute flag.
func (a *Access) SetMuted(ctx context.Context, actor models.Identity, target models.Target, muted bool) (*models.Member, error) {
	if _, err := a.Resolve(ctx, actor.TenantID, target); err != nil {
		return nil, err
	}
	m, err := a.members.SetMuted(ctx, target, actor.UserID, muted)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipRequired
		}
		return nil, fmt.Errorf("set muted: %w", err)
	}
	return m, nil
}
