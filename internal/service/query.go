package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Query serves message pages, single messages and search, each message
// redacted if deleted and carrying its reaction groups.
type Query struct {
	access      *Access
	messages    repository.MessageRepository
	reactions   repository.ReactionRepository
	cache       MessageCache
	searcher    Searcher
	pageSize    int
	maxPageSize int
	logger      *zap.Logger
}

// ListMessages returns one page in ascending id order.
//
// With f.ParentID set it pages through that thread; the conversation comes
// from the parent. Otherwise it pages through the top-level messages of
// f.Target. A full page sets HasMore; pass OldestID back as Before to load
// older messages.
func (q *Query) ListMessages(ctx context.Context, actor models.Identity, f models.MessageFilter) (*models.MessagePage, error) {
	if f.Limit <= 0 {
		f.Limit = q.pageSize
	}
	f.Limit = min(f.Limit, q.maxPageSize)
	f.Offset = max(f.Offset, 0)
	f.Before = max(f.Before, 0)
	f.Query = strings.TrimSpace(f.Query)

	if f.ParentID != nil {
		parent, err := q.messages.GetByID(ctx, actor.TenantID, *f.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrMessageNotFound
		}
		if !f.Target.IsZero() && f.Target != parent.Target {
			return nil, ErrNotInConversation
		}
		f.Target = parent.Target
	}
	if f.Target.IsZero() {
		return nil, ErrInvalidTarget
	}

	conv, err := q.access.Resolve(ctx, actor.TenantID, f.Target)
	if err != nil {
		return nil, err
	}
	if _, err := q.access.requireRead(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}

	msgs, err := q.load(ctx, actor.TenantID, f)
	if err != nil {
		return nil, err
	}
	views, err := q.views(ctx, actor.TenantID, msgs)
	if err != nil {
		return nil, err
	}

	page := &models.MessagePage{Messages: views, HasMore: len(msgs) == f.Limit}
	if len(msgs) > 0 {
		page.OldestID = msgs[0].ID
	}
	return page, nil
}

// cacheable reports whether f asks for exactly the cached window.
func (q *Query) cacheable(f models.MessageFilter) bool {
	return q.cache != nil &&
		f.ParentID == nil &&
		f.SenderID == nil &&
		f.Query == "" &&
		f.Before == 0 &&
		f.Offset == 0 &&
		!f.LiveOnly &&
		f.Limit == q.cache.Size()
}

func (q *Query) load(ctx context.Context, tenantID uuid.UUID, f models.MessageFilter) ([]models.Message, error) {
	if !q.cacheable(f) {
		return q.messages.List(ctx, tenantID, f)
	}

	w, version, err := q.cache.Get(ctx, tenantID, f.Target)
	if err != nil {
		q.logger.Warn("message cache read failed", zap.String("conversation", f.Target.String()), zap.Error(err))
		return q.messages.List(ctx, tenantID, f)
	}
	if w != nil {
		return w.Messages, nil
	}

	msgs, err := q.messages.List(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	if err := q.cache.Fill(ctx, tenantID, f.Target, version, models.MessageWindow{Messages: msgs}); err != nil {
		q.logger.Warn("message cache fill failed", zap.String("conversation", f.Target.String()), zap.Error(err))
	}
	return msgs, nil
}

// GetMessage returns one message the caller can read.
func (q *Query) GetMessage(ctx context.Context, actor models.Identity, messageID int64) (*models.MessageView, error) {
	msg, err := q.messages.GetByID(ctx, actor.TenantID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	conv, err := q.access.Resolve(ctx, actor.TenantID, msg.Target)
	if err != nil {
		return nil, err
	}
	if _, err := q.access.requireRead(ctx, conv, actor.UserID); err != nil {
		return nil, err
	}

	views, err := q.views(ctx, actor.TenantID, []models.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Search hands the query to the searcher and decorates its hits.
func (q *Query) Search(ctx context.Context, actor models.Identity, query string, limit int) ([]models.MessageView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = q.pageSize
	}
	limit = min(limit, q.maxPageSize)

	msgs, err := q.searcher.Search(ctx, actor.TenantID, actor.UserID, query, limit)
	if err != nil {
		return nil, err
	}
	return q.views(ctx, actor.TenantID, msgs)
}

func (q *Query) views(ctx context.Context, tenantID uuid.UUID, msgs []models.Message) ([]models.MessageView, error) {
	ids := lo.Map(msgs, func(m models.Message, _ int) int64 { return m.ID })
	rows, err := q.reactions.ListByMessages(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	byMessage := lo.GroupBy(rows, func(r models.Reaction) int64 { return r.MessageID })

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{
			Message:   m.Redacted(),
			Reactions: models.GroupReactions(byMessage[m.ID]),
		})
	}
	return views, nil
}
