package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/observ"
	"github.com/lalith-99/echothread/internal/repository"
	"go.uber.org/zap"
)

const maxEmojiLen = 64

// Reactions adds and removes emoji reactions. Duplicates are absorbed by the
// store's unique key, so Add is idempotent.
type Reactions struct {
	access    *Access
	messages  repository.MessageRepository
	reactions repository.ReactionRepository
	logger    *zap.Logger
}

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLen {
		return "", ErrInvalidEmoji
	}
	return emoji, nil
}

// reactable loads a live message and checks the caller is a member of its
// conversation.
func (s *Reactions) reactable(ctx context.Context, actor models.Identity, messageID int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if err := s.requireMember(ctx, actor, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// unreactable is the removal gate: the message may be a tombstone, but the
// caller must still be a member of a live conversation.
func (s *Reactions) unreactable(ctx context.Context, actor models.Identity, messageID int64) error {
	msg, err := s.messages.GetByID(ctx, actor.TenantID, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	return s.requireMember(ctx, actor, msg)
}

func (s *Reactions) requireMember(ctx context.Context, actor models.Identity, msg *models.Message) error {
	conv, err := s.access.Resolve(ctx, actor.TenantID, msg.Target)
	if err != nil {
		return err
	}
	_, err = s.access.requireMember(ctx, conv, actor.UserID)
	return err
}

// Add stores the reaction. created is false when the caller had already
// reacted with that emoji; the existing row is returned.
func (s *Reactions) Add(ctx context.Context, actor models.Identity, messageID int64, emoji string) (*models.Reaction, bool, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.reactable(ctx, actor, messageID); err != nil {
		return nil, false, err
	}

	r, created, err := s.reactions.Add(context.WithoutCancel(ctx), &models.Reaction{
		TenantID:  actor.TenantID,
		MessageID: messageID,
		UserID:    actor.UserID,
		Emoji:     emoji,
	})
	if err != nil {
		return nil, false, fmt.Errorf("add reaction: %w", err)
	}
	if created {
		observ.Reactions().WithLabelValues("added").Inc()
	} else {
		observ.Reactions().WithLabelValues("duplicate").Inc()
	}
	return r, created, nil
}

// Remove deletes a reaction by id. Only the user who reacted may remove it.
// A row that vanishes between lookup and delete is not an error.
func (s *Reactions) Remove(ctx context.Context, actor models.Identity, reactionID int64) error {
	r, err := s.reactions.GetByID(ctx, actor.TenantID, reactionID)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrReactionNotFound
	}
	if r.UserID != actor.UserID {
		return ErrNotReactor
	}
	if err := s.unreactable(ctx, actor, r.MessageID); err != nil {
		return err
	}

	removed, err := s.reactions.Delete(context.WithoutCancel(ctx), actor.TenantID, reactionID)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if removed {
		observ.Reactions().WithLabelValues("removed").Inc()
	}
	return nil
}

// RemoveByKey deletes the caller's emoji on a message if present.
func (s *Reactions) RemoveByKey(ctx context.Context, actor models.Identity, messageID int64, emoji string) error {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return err
	}
	if err := s.unreactable(ctx, actor, messageID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, actor, messageID, emoji)
}

func (s *Reactions) deleteByKey(ctx context.Context, actor models.Identity, messageID int64, emoji string) error {
	removed, err := s.reactions.DeleteByKey(context.WithoutCancel(ctx), actor.TenantID, messageID, actor.UserID, emoji)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if removed {
		observ.Reactions().WithLabelValues("removed").Inc()
	}
	return nil
}

// Toggle removes the caller's emoji if the grouped view shows it, adds it
// otherwise. The read and the write are separate steps: two racing toggles
// may take the same branch, which both primitives tolerate.
func (s *Reactions) Toggle(ctx context.Context, actor models.Identity, messageID int64, emoji string) (bool, *models.Reaction, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return false, nil, err
	}
	if _, err := s.reactable(ctx, actor, messageID); err != nil {
		return false, nil, err
	}

	rows, err := s.reactions.ListByMessages(ctx, actor.TenantID, []int64{messageID})
	if err != nil {
		return false, nil, err
	}
	if models.HasReacted(models.GroupReactions(rows), emoji, actor.UserID) {
		return false, nil, s.deleteByKey(ctx, actor, messageID, emoji)
	}
	r, _, err := s.Add(ctx, actor, messageID, emoji)
	if err != nil {
		return false, nil, err
	}
	return true, r, nil
}

// Grouped returns the per-emoji view of a message, in first-use order.
// Deleted messages keep their reactions.
func (s *Reactions) Grouped(ctx context.Context, actor models.Identity, messageID int64) ([]models.ReactionGroup, error) {
	msg, err := s.messages.GetByID(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	conv, err := s.access.Resolve(ctx, actor.TenantID, msg.Target)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.requireRead(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}

	rows, err := s.reactions.ListByMessages(ctx, actor.TenantID, []int64{messageID})
	if err != nil {
		return nil, err
	}
	return models.GroupReactions(rows), nil
}
