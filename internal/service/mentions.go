package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

const defaultMentionLimit = 50

// Mentions is the caller's mention feed. Rows are written with the message;
// see Messages.Send.
type Mentions struct {
	mentions repository.MentionRepository
}

func (s *Mentions) List(ctx context.Context, actor models.Identity, unreadOnly bool, limit int) ([]models.Mention, error) {
	if limit <= 0 || limit > defaultMentionLimit {
		limit = defaultMentionLimit
	}
	return s.mentions.ListForUser(ctx, actor.TenantID, actor.UserID, unreadOnly, limit)
}

func (s *Mentions) MarkRead(ctx context.Context, actor models.Identity, messageID int64) (*models.Mention, error) {
	m, err := s.mentions.MarkRead(context.WithoutCancel(ctx), actor.TenantID, messageID, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMentionNotFound
		}
		return nil, fmt.Errorf("mark mention read: %w", err)
	}
	return m, nil
}
