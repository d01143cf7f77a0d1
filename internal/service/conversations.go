package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Conversations creates, updates and lists channels and groups.
type Conversations struct {
	access   *Access
	channels repository.ChannelRepository
	groups   repository.GroupRepository
	members  repository.MembershipRepository
	messages repository.MessageRepository
	logger   *zap.Logger

	// dedupeDMs turns on single-DM-per-pair: CreateGroup answers dm_exists
	// instead of opening a second DM between the same two users.
	dedupeDMs bool
}

// CreateChannelInput is what a caller supplies to open a channel.
type CreateChannelInput struct {
	Name         string
	Type         models.ChannelType
	Description  string
	IsReadOnly   bool
	DepartmentID *uuid.UUID
	ProjectID    *uuid.UUID
	EventID      *uuid.UUID
}

// CreateGroupInput is what a caller supplies to open a group or DM. The
// creator is always enrolled and need not appear in MemberIDs.
type CreateGroupInput struct {
	Name      string
	IsDM      bool
	MemberIDs []uuid.UUID
}

// ChannelDetail is a channel with its members and the caller's unread count.
type ChannelDetail struct {
	*models.Channel
	Members     []models.Member `json:"members"`
	UnreadCount int             `json:"unread_count"`
}

// GroupDetail is a group with its members and the caller's unread count.
type GroupDetail struct {
	*models.Group
	Kind        models.ConversationKind `json:"kind"`
	Members     []models.Member         `json:"members"`
	UnreadCount int                     `json:"unread_count"`
}

// CreateChannel opens a channel with the creator as owner. The name is
// normalized before the per-tenant uniqueness check, so "Team Updates" and
// "team-updates" collide.
func (s *Conversations) CreateChannel(ctx context.Context, actor models.Identity, in CreateChannelInput) (*models.Channel, error) {
	name := models.NormalizeChannelName(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if in.Type == "" {
		in.Type = models.ChannelPublic
	}
	if !in.Type.Valid() {
		return nil, ErrInvalidChannelType
	}

	ch, err := s.channels.Create(context.WithoutCancel(ctx), &models.Channel{
		TenantID:     actor.TenantID,
		Name:         name,
		Type:         in.Type,
		Description:  strings.TrimSpace(in.Description),
		IsReadOnly:   in.IsReadOnly,
		DepartmentID: in.DepartmentID,
		ProjectID:    in.ProjectID,
		EventID:      in.EventID,
		CreatedBy:    actor.UserID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.nameTaken(ctx, actor.TenantID, name)
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}

	s.logger.Info("channel created",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("channel_id", ch.ID.String()),
		zap.String("name", ch.Name),
		zap.String("channel_type", string(ch.Type)),
	)
	return ch, nil
}

func (s *Conversations) nameTaken(ctx context.Context, tenantID uuid.UUID, name string) error {
	existing, err := s.channels.GetByName(ctx, tenantID, name)
	if err != nil || existing == nil {
		return ErrChannelNameTaken
	}
	return withExisting(ErrChannelNameTaken, existing)
}

// UpdateChannel applies a patch of name, description and flags. Owners and
// admins of the channel, and tenant moderators, may update it. An archived
// channel accepts no further changes.
func (s *Conversations) UpdateChannel(ctx context.Context, actor models.Identity, channelID uuid.UUID, patch models.ChannelPatch) (*models.Channel, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	if patch.Name != nil {
		name := models.NormalizeChannelName(*patch.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		patch.Description = &d
	}

	conv, err := s.access.Resolve(ctx, actor.TenantID, models.ChannelTarget(channelID))
	if err != nil {
		return nil, err
	}
	if !actor.IsModerator() {
		if _, err := s.access.requireManager(ctx, conv, actor.UserID); err != nil {
			return nil, err
		}
	}
	if conv.Channel.IsArchived {
		return nil, ErrArchived
	}

	ch, err := s.channels.Update(context.WithoutCancel(ctx), actor.TenantID, channelID, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, s.nameTaken(ctx, actor.TenantID, *patch.Name)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("update channel: %w", err)
	}
	return ch, nil
}

// GetChannel returns the channel with its members. UnreadCount is 0 for
// readers of a public channel who never joined.
func (s *Conversations) GetChannel(ctx context.Context, actor models.Identity, channelID uuid.UUID) (*ChannelDetail, error) {
	conv, err := s.access.Resolve(ctx, actor.TenantID, models.ChannelTarget(channelID))
	if err != nil {
		return nil, err
	}
	member, err := s.access.requireRead(ctx, conv, actor.UserID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, conv.Target)
	if err != nil {
		return nil, err
	}
	unread, err := s.unread(ctx, actor, conv.Target, member)
	if err != nil {
		return nil, err
	}
	return &ChannelDetail{Channel: conv.Channel, Members: members, UnreadCount: unread}, nil
}

// ListChannels returns public channels and those the caller belongs to.
func (s *Conversations) ListChannels(ctx context.Context, actor models.Identity, filter models.ChannelFilter) ([]models.Channel, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidChannelType
	}
	return s.channels.ListVisible(ctx, actor.TenantID, actor.UserID, filter)
}

// CreateGroup opens a private group or a DM. A DM holds exactly the creator
// and one other user. Every member must belong to the caller's tenant.
func (s *Conversations) CreateGroup(ctx context.Context, actor models.Identity, in CreateGroupInput) (*models.Group, error) {
	others := lo.Without(lo.Uniq(in.MemberIDs), actor.UserID, uuid.Nil)

	name := strings.TrimSpace(in.Name)
	if in.IsDM {
		if len(others) != 1 {
			return nil, ErrInvalidMembers
		}
		name = ""
	}

	if err := s.access.requireTenantUsers(ctx, actor.TenantID, others); err != nil {
		return nil, err
	}

	if in.IsDM && s.dedupeDMs {
		existing, err := s.groups.FindDM(ctx, actor.TenantID, actor.UserID, others[0])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, withExisting(ErrDMExists, existing)
		}
	}

	members := make([]models.NewMember, 0, len(others)+1)
	members = append(members, models.NewMember{UserID: actor.UserID, Role: models.RoleOwner})
	for _, id := range others {
		members = append(members, models.NewMember{UserID: id, Role: models.RoleMember})
	}

	g, err := s.groups.Create(context.WithoutCancel(ctx), &models.Group{
		TenantID:  actor.TenantID,
		Name:      name,
		IsDM:      in.IsDM,
		CreatedBy: actor.UserID,
	}, members)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info("group created",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("group_id", g.ID.String()),
		zap.Bool("is_dm", g.IsDM),
		zap.Int("members", len(members)),
	)
	return g, nil
}

// FindDM returns the caller's existing DM with other, or nil. It is the
// check a caller runs first when it wants one DM per pair and the engine
// does not enforce it.
func (s *Conversations) FindDM(ctx context.Context, actor models.Identity, other uuid.UUID) (*models.Group, error) {
	return s.groups.FindDM(ctx, actor.TenantID, actor.UserID, other)
}

// GetGroup returns a group the caller belongs to.
func (s *Conversations) GetGroup(ctx context.Context, actor models.Identity, groupID uuid.UUID) (*GroupDetail, error) {
	conv, err := s.access.Resolve(ctx, actor.TenantID, models.GroupTarget(groupID))
	if err != nil {
		return nil, err
	}
	member, err := s.access.requireRead(ctx, conv, actor.UserID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, conv.Target)
	if err != nil {
		return nil, err
	}
	unread, err := s.unread(ctx, actor, conv.Target, member)
	if err != nil {
		return nil, err
	}
	return &GroupDetail{
		Group:       conv.Group,
		Kind:        conv.Group.Kind(),
		Members:     members,
		UnreadCount: unread,
	}, nil
}

// ListGroups returns the caller's groups, optionally only DMs or only non-DMs.
func (s *Conversations) ListGroups(ctx context.Context, actor models.Identity, filter models.GroupFilter) ([]models.Group, error) {
	return s.groups.ListForUser(ctx, actor.TenantID, actor.UserID, filter)
}

func (s *Conversations) unread(ctx context.Context, actor models.Identity, target models.Target, member *models.Member) (int, error) {
	if member == nil {
		return 0, nil
	}
	return s.messages.CountUnread(ctx, actor.TenantID, target, actor.UserID, member.LastReadMessageID)
}
