package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

type MembershipStore struct {
	st *state
}

func (s *MembershipStore) Add(_ context.Context, conv models.Target, userID uuid.UUID, role models.Role) (*models.Member, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.addMemberLocked(conv, userID, role)
	if !ok {
		return nil, repository.ErrConflict
	}
	out := *m
	return &out, nil
}

func (s *MembershipStore) Remove(_ context.Context, conv models.Target, userID uuid.UUID) error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	key := memberKey{conv: conv, user: userID}
	if _, ok := st.members[key]; !ok {
		return repository.ErrNotFound
	}
	delete(st.members, key)
	for i, k := range st.joinOrder {
		if k == key {
			st.joinOrder = append(st.joinOrder[:i], st.joinOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MembershipStore) Get(_ context.Context, conv models.Target, userID uuid.UUID) (*models.Member, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.members[memberKey{conv: conv, user: userID}]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (s *MembershipStore) List(_ context.Context, conv models.Target) ([]models.Member, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	members := make([]models.Member, 0)
	for _, k := range st.joinOrder {
		if k.conv == conv {
			members = append(members, *st.members[k])
		}
	}
	return members, nil
}

func (s *MembershipStore) AdvanceReadPointer(_ context.Context, conv models.Target, userID uuid.UUID, messageID int64) (*models.Member, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	m, ok := st.members[memberKey{conv: conv, user: userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if messageID > m.LastReadMessageID {
		m.LastReadMessageID = messageID
	}
	now := st.now()
	m.LastReadAt = &now
	out := *m
	return &out, nil
}

func (s *MembershipStore) SetMuted(_ context.Context, conv models.Target, userID uuid.UUID, muted bool) (*models.Member, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.members[memberKey{conv: conv, user: userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.IsMuted = muted
	out := *m
	return &out, nil
}
