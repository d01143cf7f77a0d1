package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

type ReactionStore struct {
	st *state
}

func (s *ReactionStore) Add(_ context.Context, r *models.Reaction) (*models.Reaction, bool, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	key := reactionKey{tenant: r.TenantID, message: r.MessageID, user: r.UserID, emoji: r.Emoji}
	if id, ok := st.reactionIdx[key]; ok {
		out := *st.reactions[id]
		return &out, false, nil
	}
	st.reactionSeq++
	stored := *r
	stored.ID = st.reactionSeq
	stored.CreatedAt = st.now()
	st.reactions[stored.ID] = &stored
	st.reactionIdx[key] = stored.ID
	out := stored
	return &out, true, nil
}

func (s *ReactionStore) GetByID(_ context.Context, tenantID uuid.UUID, reactionID int64) (*models.Reaction, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	r, ok := s.st.reactions[reactionID]
	if !ok || r.TenantID != tenantID {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *ReactionStore) Delete(_ context.Context, tenantID uuid.UUID, reactionID int64) (bool, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.reactions[reactionID]
	if !ok || r.TenantID != tenantID {
		return false, nil
	}
	st.dropReactionLocked(r)
	return true, nil
}

func (s *ReactionStore) DeleteByKey(_ context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID, emoji string) (bool, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	id, ok := st.reactionIdx[reactionKey{tenant: tenantID, message: messageID, user: userID, emoji: emoji}]
	if !ok {
		return false, nil
	}
	st.dropReactionLocked(st.reactions[id])
	return true, nil
}

func (st *state) dropReactionLocked(r *models.Reaction) {
	delete(st.reactionIdx, reactionKey{tenant: r.TenantID, message: r.MessageID, user: r.UserID, emoji: r.Emoji})
	delete(st.reactions, r.ID)
}

func (s *ReactionStore) ListByMessages(_ context.Context, tenantID uuid.UUID, messageIDs []int64) ([]models.Reaction, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	want := make(map[int64]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = struct{}{}
	}
	out := make([]models.Reaction, 0)
	for _, r := range st.reactions {
		if _, ok := want[r.MessageID]; ok && r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MentionStore struct {
	st *state
}

func (s *MentionStore) ListForUser(_ context.Context, tenantID uuid.UUID, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Mention, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]models.Mention, 0)
	for i := len(st.mentions) - 1; i >= 0 && len(out) < limit; i-- {
		m := st.mentions[i]
		if m.TenantID != tenantID || m.MentionedUserID != userID {
			continue
		}
		if unreadOnly && m.IsRead {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *MentionStore) MarkRead(_ context.Context, tenantID uuid.UUID, messageID int64, userID uuid.UUID) (*models.Mention, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, m := range st.mentions {
		if m.TenantID == tenantID && m.MessageID == messageID && m.MentionedUserID == userID {
			if !m.IsRead {
				now := st.now()
				m.IsRead = true
				m.ReadAt = &now
			}
			out := *m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}
