package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

type MessageStore struct {
	st *state
}

func (s *MessageStore) Create(_ context.Context, in models.NewMessage) (*models.Message, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var parent *models.Message
	if in.ParentMessageID != nil {
		parent = st.messages[messageKey{tenant: in.TenantID, id: *in.ParentMessageID}]
		if parent == nil || parent.IsDeleted || parent.Target != in.Target {
			return nil, repository.ErrInvalidParent
		}
	}

	st.seq[in.TenantID]++
	now := st.now()
	msg := &models.Message{
		ID:              st.seq[in.TenantID],
		TenantID:        in.TenantID,
		Target:          in.Target,
		ParentMessageID: in.ParentMessageID,
		SenderID:        in.SenderID,
		Content:         in.Content,
		File:            in.File,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	key := messageKey{tenant: in.TenantID, id: msg.ID}
	st.messages[key] = msg
	st.order = append(st.order, key)

	if parent != nil {
		parent.ThreadReplyCount++
	}
	for _, u := range in.Mentions {
		st.mentions = append(st.mentions, &models.Mention{
			TenantID:        in.TenantID,
			MessageID:       msg.ID,
			MentionedUserID: u,
			CreatedAt:       now,
		})
	}
	return cloneMessage(msg), nil
}

func (s *MessageStore) GetByID(_ context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m := s.st.messages[messageKey{tenant: tenantID, id: messageID}]
	if m == nil {
		return nil, nil
	}
	return cloneMessage(m), nil
}

func (s *MessageStore) List(_ context.Context, tenantID uuid.UUID, f models.MessageFilter) ([]models.Message, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	query := strings.ToLower(strings.TrimSpace(f.Query))
	skipped := 0
	page := make([]models.Message, 0, f.Limit)
	// st.order is ascending by id within a tenant; walk it newest first.
	for i := len(st.order) - 1; i >= 0 && len(page) < f.Limit; i-- {
		k := st.order[i]
		if k.tenant != tenantID {
			continue
		}
		m := st.messages[k]
		if f.Before > 0 && m.ID >= f.Before {
			continue
		}
		if f.ParentID != nil {
			if m.ParentMessageID == nil || *m.ParentMessageID != *f.ParentID {
				continue
			}
		} else if m.ParentMessageID != nil || m.Target != f.Target {
			continue
		}
		if f.SenderID != nil && m.SenderID != *f.SenderID {
			continue
		}
		if (f.LiveOnly || query != "") && m.IsDeleted {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Content), query) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		page = append(page, *cloneMessage(m))
	}
	reverse(page)
	return page, nil
}

func (s *MessageStore) UpdateContent(_ context.Context, tenantID uuid.UUID, messageID int64, content string) (*models.Message, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.messages[messageKey{tenant: tenantID, id: messageID}]
	if m == nil || m.IsDeleted {
		return nil, repository.ErrNotFound
	}
	now := st.now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	m.UpdatedAt = now
	return cloneMessage(m), nil
}

func (s *MessageStore) SoftDelete(_ context.Context, tenantID uuid.UUID, messageID int64) (*models.Message, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.messages[messageKey{tenant: tenantID, id: messageID}]
	if m == nil || m.IsDeleted {
		return nil, repository.ErrNotFound
	}
	now := st.now()
	m.IsDeleted = true
	m.DeletedAt = &now
	m.UpdatedAt = now
	return cloneMessage(m), nil
}

func (s *MessageStore) CountUnread(_ context.Context, tenantID uuid.UUID, conv models.Target, userID uuid.UUID, afterID int64) (int, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.countUnreadLocked(tenantID, conv, userID, afterID), nil
}

func (st *state) countUnreadLocked(tenantID uuid.UUID, conv models.Target, userID uuid.UUID, afterID int64) int {
	n := 0
	for i := len(st.order) - 1; i >= 0; i-- {
		k := st.order[i]
		if k.tenant != tenantID {
			continue
		}
		if k.id <= afterID {
			break
		}
		m := st.messages[k]
		if m.Target == conv && !m.IsDeleted && m.SenderID != userID {
			n++
		}
	}
	return n
}

func (s *MessageStore) UnreadSummary(_ context.Context, tenantID uuid.UUID, userID uuid.UUID) ([]models.UnreadCount, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]models.UnreadCount, 0)
	for _, k := range st.joinOrder {
		if k.user != userID || !st.ownedByLocked(tenantID, k.conv) {
			continue
		}
		m := st.members[k]
		out = append(out, models.UnreadCount{
			Conversation: k.conv,
			Count:        st.countUnreadLocked(tenantID, k.conv, userID, m.LastReadMessageID),
		})
	}
	return out, nil
}

func (st *state) ownedByLocked(tenantID uuid.UUID, conv models.Target) bool {
	switch conv.Kind() {
	case models.KindChannel:
		return st.channelLocked(tenantID, conv.ID()) != nil
	case models.KindGroup:
		for _, g := range st.groups {
			if g.ID == conv.ID() {
				return g.TenantID == tenantID
			}
		}
	}
	return false
}

func (s *MessageStore) Search(_ context.Context, tenantID uuid.UUID, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Message, 0)
	for i := len(st.order) - 1; i >= 0 && len(out) < limit; i-- {
		k := st.order[i]
		if k.tenant != tenantID {
			continue
		}
		m := st.messages[k]
		if m.IsDeleted || !strings.Contains(strings.ToLower(m.Content), q) {
			continue
		}
		if !st.canReadLocked(tenantID, m.Target, userID) {
			continue
		}
		out = append(out, *cloneMessage(m))
	}
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
