package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
)

type ChannelStore struct {
	st *state
}

func (s *ChannelStore) Create(_ context.Context, ch *models.Channel) (*models.Channel, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, existing := range st.channels {
		if existing.TenantID == ch.TenantID && existing.Name == ch.Name {
			return nil, repository.ErrConflict
		}
	}

	c := cloneChannel(ch)
	c.ID = uuid.New()
	c.CreatedAt = st.now()
	c.UpdatedAt = c.CreatedAt
	st.channels = append(st.channels, c)
	st.addMemberLocked(c.Target(), c.CreatedBy, models.RoleOwner)
	return cloneChannel(c), nil
}

func (s *ChannelStore) GetByID(_ context.Context, tenantID uuid.UUID, channelID uuid.UUID) (*models.Channel, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if ch := s.st.channelLocked(tenantID, channelID); ch != nil {
		return cloneChannel(ch), nil
	}
	return nil, nil
}

func (s *ChannelStore) GetByName(_ context.Context, tenantID uuid.UUID, name string) (*models.Channel, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, ch := range s.st.channels {
		if ch.TenantID == tenantID && ch.Name == name {
			return cloneChannel(ch), nil
		}
	}
	return nil, nil
}

func (s *ChannelStore) ListVisible(_ context.Context, tenantID uuid.UUID, userID uuid.UUID, filter models.ChannelFilter) ([]models.Channel, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	channels := make([]models.Channel, 0)
	for i := len(st.channels) - 1; i >= 0; i-- {
		ch := st.channels[i]
		if ch.TenantID != tenantID {
			continue
		}
		if !ch.Type.OpenToTenant() && !st.isMemberLocked(ch.Target(), userID) {
			continue
		}
		if !matchChannel(ch, filter) {
			continue
		}
		channels = append(channels, *ch)
	}
	return channels, nil
}

func matchChannel(ch *models.Channel, f models.ChannelFilter) bool {
	if f.Type != "" && ch.Type != f.Type {
		return false
	}
	if f.Archived != nil && ch.IsArchived != *f.Archived {
		return false
	}
	if !sameRef(f.DepartmentID, ch.DepartmentID) || !sameRef(f.ProjectID, ch.ProjectID) || !sameRef(f.EventID, ch.EventID) {
		return false
	}
	return true
}

// sameRef is true when no filter is set or the channel carries that id.
func sameRef(want, have *uuid.UUID) bool {
	if want == nil {
		return true
	}
	return have != nil && *have == *want
}

func (s *ChannelStore) Update(_ context.Context, tenantID uuid.UUID, channelID uuid.UUID, patch models.ChannelPatch) (*models.Channel, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	ch := st.channelLocked(tenantID, channelID)
	if ch == nil {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil && *patch.Name != ch.Name {
		for _, other := range st.channels {
			if other.TenantID == tenantID && other.Name == *patch.Name {
				return nil, repository.ErrConflict
			}
		}
		ch.Name = *patch.Name
	}
	if patch.Description != nil {
		ch.Description = *patch.Description
	}
	if patch.IsReadOnly != nil {
		ch.IsReadOnly = *patch.IsReadOnly
	}
	if patch.IsArchived != nil {
		ch.IsArchived = *patch.IsArchived
	}
	ch.UpdatedAt = st.now()
	return cloneChannel(ch), nil
}

type GroupStore struct {
	st *state
}

func (s *GroupStore) Create(_ context.Context, g *models.Group, members []models.NewMember) (*models.Group, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	c := *g
	c.ID = uuid.New()
	c.CreatedAt = st.now()
	c.UpdatedAt = c.CreatedAt
	st.groups = append(st.groups, &c)
	for _, m := range members {
		st.addMemberLocked(c.Target(), m.UserID, m.Role)
	}
	out := c
	return &out, nil
}

func (s *GroupStore) GetByID(_ context.Context, tenantID uuid.UUID, groupID uuid.UUID) (*models.Group, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, g := range s.st.groups {
		if g.ID == groupID && g.TenantID == tenantID {
			out := *g
			return &out, nil
		}
	}
	return nil, nil
}

func (s *GroupStore) ListForUser(_ context.Context, tenantID uuid.UUID, userID uuid.UUID, filter models.GroupFilter) ([]models.Group, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	groups := make([]models.Group, 0)
	for i := len(st.groups) - 1; i >= 0; i-- {
		g := st.groups[i]
		if g.TenantID != tenantID || !st.isMemberLocked(g.Target(), userID) {
			continue
		}
		if filter.IsDM != nil && g.IsDM != *filter.IsDM {
			continue
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func (s *GroupStore) FindDM(_ context.Context, tenantID uuid.UUID, a, b uuid.UUID) (*models.Group, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, g := range st.groups {
		if g.TenantID != tenantID || !g.IsDM {
			continue
		}
		if st.isMemberLocked(g.Target(), a) && st.isMemberLocked(g.Target(), b) {
			out := *g
			return &out, nil
		}
	}
	return nil, nil
}

type UserStore struct {
	st *state
}

func (s *UserStore) GetByID(_ context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	return &u, nil
}

func (s *UserStore) MissingFromTenant(_ context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	missing := make([]uuid.UUID, 0)
	for _, id := range userIDs {
		if u, ok := s.st.users[id]; !ok || u.TenantID != tenantID {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
