package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

// ReadState moves read pointers and derives unread counts from them.
// Pointers only move forward, so concurrent marks need no lock.
type ReadState struct {
	access   *Access
	members  repository.MembershipRepository
	messages repository.MessageRepository
}

// MarkRead advances the caller's pointer to messageID unless it is already
// past it. The message must belong to the conversation.
func (s *ReadState) MarkRead(ctx context.Context, actor models.Identity, target models.Target, messageID int64) (*models.Member, error) {
	conv, err := s.access.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return nil, err
	}
	member, err := s.members.Get(ctx, conv.Target, actor.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMembershipRequired
	}

	if messageID <= 0 {
		return nil, ErrNotInConversation
	}
	msg, err := s.messages.GetByID(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.Target != conv.Target {
		return nil, ErrNotInConversation
	}

	m, err := s.members.AdvanceReadPointer(context.WithoutCancel(ctx), conv.Target, actor.UserID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipRequired
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return m, nil
}

// UnreadCount counts live messages past the caller's pointer, leaving out
// the caller's own.
func (s *ReadState) UnreadCount(ctx context.Context, actor models.Identity, target models.Target) (int, error) {
	conv, err := s.access.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return 0, err
	}
	member, err := s.members.Get(ctx, conv.Target, actor.UserID)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return 0, ErrMembershipRequired
	}
	return s.messages.CountUnread(ctx, actor.TenantID, conv.Target, actor.UserID, member.LastReadMessageID)
}

// UnreadSummary returns one entry per conversation the caller belongs to.
func (s *ReadState) UnreadSummary(ctx context.Context, actor models.Identity) ([]models.UnreadCount, error) {
	return s.messages.UnreadSummary(ctx, actor.TenantID, actor.UserID)
}
