// Package memory is an in-process implementation of the repository
// interfaces. It backs the test suites and `DATABASE_URL=memory://` runs.
// A single mutex plays the role of the database's row locks, so every method
// is atomic the same way the postgres stores' transactions are.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
)

type memberKey struct {
	conv models.Target
	user uuid.UUID
}

type messageKey struct {
	tenant uuid.UUID
	id     int64
}

type reactionKey struct {
	tenant  uuid.UUID
	message int64
	user    uuid.UUID
	emoji   string
}

type state struct {
	mu  sync.Mutex
	now func() time.Time

	users     map[uuid.UUID]models.User
	channels  []*models.Channel
	groups    []*models.Group
	members   map[memberKey]*models.Member
	joinOrder []memberKey

	seq      map[uuid.UUID]int64
	messages map[messageKey]*models.Message
	order    []messageKey
	mentions []*models.Mention

	reactionSeq int64
	reactions   map[int64]*models.Reaction
	reactionIdx map[reactionKey]int64
}

// Store groups the per-entity repositories over one shared state.
type Store struct {
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{
		now:         func() time.Time { return time.Now().UTC() },
		users:       make(map[uuid.UUID]models.User),
		members:     make(map[memberKey]*models.Member),
		seq:         make(map[uuid.UUID]int64),
		messages:    make(map[messageKey]*models.Message),
		reactions:   make(map[int64]*models.Reaction),
		reactionIdx: make(map[reactionKey]int64),
	}}
}

// AddUser registers a user. Users are owned by the identity provider, so
// this is the only way they enter the store.
func (s *Store) AddUser(u models.User) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.st.now()
	}
	s.st.users[u.ID] = u
}

func (s *Store) Channels() *ChannelStore       { return &ChannelStore{st: s.st} }
func (s *Store) Groups() *GroupStore           { return &GroupStore{st: s.st} }
func (s *Store) Memberships() *MembershipStore { return &MembershipStore{st: s.st} }
func (s *Store) Messages() *MessageStore       { return &MessageStore{st: s.st} }
func (s *Store) Reactions() *ReactionStore     { return &ReactionStore{st: s.st} }
func (s *Store) Mentions() *MentionStore       { return &MentionStore{st: s.st} }
func (s *Store) Users() *UserStore             { return &UserStore{st: s.st} }

// addMemberLocked inserts a membership row. The caller holds st.mu.
func (st *state) addMemberLocked(conv models.Target, userID uuid.UUID, role models.Role) (*models.Member, bool) {
	key := memberKey{conv: conv, user: userID}
	if _, ok := st.members[key]; ok {
		return nil, false
	}
	m := &models.Member{
		Conversation: conv,
		UserID:       userID,
		Role:         role,
		JoinedAt:     st.now(),
	}
	st.members[key] = m
	st.joinOrder = append(st.joinOrder, key)
	return m, true
}

func (st *state) isMemberLocked(conv models.Target, userID uuid.UUID) bool {
	_, ok := st.members[memberKey{conv: conv, user: userID}]
	return ok
}

func (st *state) channelLocked(tenantID, id uuid.UUID) *models.Channel {
	for _, ch := range st.channels {
		if ch.ID == id && ch.TenantID == tenantID {
			return ch
		}
	}
	return nil
}

// canReadLocked mirrors the visibility rule used by search: public
// channels, or any conversation with a membership row.
func (st *state) canReadLocked(tenantID uuid.UUID, conv models.Target, userID uuid.UUID) bool {
	if st.isMemberLocked(conv, userID) {
		return true
	}
	if id, ok := conv.ChannelID(); ok {
		if ch := st.channelLocked(tenantID, id); ch != nil {
			return ch.Type.OpenToTenant()
		}
	}
	return false
}

func cloneChannel(ch *models.Channel) *models.Channel {
	c := *ch
	return &c
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	if m.File != nil {
		f := *m.File
		c.File = &f
	}
	return &c
}
