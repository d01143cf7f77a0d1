package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/observ"
	"github.com/lalith-99/echothread/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Messages accepts, edits and deletes messages. Once validation and access
// checks pass, a mutation runs to completion even if the caller goes away.
type Messages struct {
	access     *Access
	messages   repository.MessageRepository
	cache      MessageCache
	dispatcher MentionDispatcher
	validate   *validator.Validate
	logger     *zap.Logger
}

// SendInput is a message to post. Target may be left zero for a reply; it
// is then taken from the parent.
type SendInput struct {
	Target          models.Target
	ParentMessageID *int64
	Content         string
	File            *models.FileRef
	Mentions        []uuid.UUID
}

func (s *Messages) Send(ctx context.Context, actor models.Identity, in SendInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.File == nil {
		return nil, ErrEmptyMessage
	}
	if in.File != nil {
		if err := s.validate.Struct(in.File); err != nil {
			return nil, ErrInvalidFile
		}
	}

	target := in.Target
	if in.ParentMessageID != nil {
		parent, err := s.messages.GetByID(ctx, actor.TenantID, *in.ParentMessageID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.IsDeleted {
			return nil, ErrInvalidParent
		}
		if target.IsZero() {
			target = parent.Target
		}
		if parent.Target != target {
			return nil, ErrInvalidParent
		}
	}
	if target.IsZero() {
		return nil, ErrInvalidTarget
	}

	conv, err := s.access.Resolve(ctx, actor.TenantID, target)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.requireWrite(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}

	mentions := lo.Without(lo.Uniq(in.Mentions), actor.UserID, uuid.Nil)
	if err := s.access.requireTenantUsers(ctx, actor.TenantID, mentions); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	msg, err := s.messages.Create(ctx, models.NewMessage{
		TenantID:        actor.TenantID,
		Target:          target,
		ParentMessageID: in.ParentMessageID,
		SenderID:        actor.UserID,
		Content:         content,
		File:            in.File,
		Mentions:        mentions,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidParent) {
			return nil, ErrInvalidParent
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	if msg.ParentMessageID == nil {
		observ.MessagesSent().WithLabelValues("message").Inc()
		s.appendCached(ctx, msg)
	} else {
		// The parent's reply counter changed under the cached window.
		observ.MessagesSent().WithLabelValues("reply").Inc()
		s.invalidate(ctx, msg.TenantID, msg.Target)
	}
	s.dispatchMentions(ctx, msg, mentions)

	return msg, nil
}

// Edit replaces the content of a live message. Only the sender may edit.
func (s *Messages) Edit(ctx context.Context, actor models.Identity, messageID int64, content string) (*models.Message, error) {
	msg, err := s.live(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor.UserID {
		return nil, ErrNotSender
	}
	content = strings.TrimSpace(content)
	if content == "" && msg.File == nil {
		return nil, ErrEmptyMessage
	}

	conv, err := s.access.Resolve(ctx, actor.TenantID, msg.Target)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.requireWrite(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.messages.UpdateContent(ctx, actor.TenantID, messageID, content)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("edit message: %w", err)
	}
	s.invalidate(ctx, updated.TenantID, updated.Target)
	return updated, nil
}

// Delete soft-deletes a message. The sender, a tenant moderator, or an
// owner or admin of the conversation may delete it. Replies, reactions and
// the parent's reply counter are left as they are.
func (s *Messages) Delete(ctx context.Context, actor models.Identity, messageID int64) (*models.Message, error) {
	msg, err := s.live(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor.UserID && !actor.IsModerator() {
		conv, err := s.access.Resolve(ctx, actor.TenantID, msg.Target)
		if err != nil {
			return nil, err
		}
		if _, err := s.access.requireManager(ctx, conv, actor.UserID); err != nil {
			return nil, ErrNotSender
		}
	}

	ctx = context.WithoutCancel(ctx)
	deleted, err := s.messages.SoftDelete(ctx, actor.TenantID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("delete message: %w", err)
	}
	s.invalidate(ctx, deleted.TenantID, deleted.Target)

	s.logger.Info("message deleted",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.Int64("message_id", messageID),
		zap.String("deleted_by", actor.UserID.String()),
	)
	return deleted, nil
}

// live returns the message or NotFound when it is missing or deleted.
func (s *Messages) live(ctx context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (s *Messages) appendCached(ctx context.Context, msg *models.Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Append(ctx, msg.TenantID, msg.Target, *msg); err != nil {
		s.logger.Warn("message cache append failed",
			zap.String("conversation", msg.Target.String()),
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (s *Messages) invalidate(ctx context.Context, tenantID uuid.UUID, target models.Target) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, target); err != nil {
		s.logger.Warn("message cache invalidate failed",
			zap.String("conversation", target.String()),
			zap.Error(err),
		)
	}
}

func (s *Messages) dispatchMentions(ctx context.Context, msg *models.Message, mentions []uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	for _, userID := range mentions {
		event := models.MentionEvent{
			TenantID:        msg.TenantID,
			MessageID:       msg.ID,
			Conversation:    msg.Target,
			SenderID:        msg.SenderID,
			MentionedUserID: userID,
			CreatedAt:       msg.CreatedAt,
		}
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			s.logger.Error("mention dispatch failed",
				zap.Int64("message_id", msg.ID),
				zap.String("mentioned_user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}
