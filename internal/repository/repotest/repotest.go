// Package repotest is a behaviour suite for repository implementations.
// The memory and postgres stores both run it, so the engine sees the same
// paging, visibility and unread semantics whichever one backs it.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository"
	"github.com/stretchr/testify/require"
)

// Stores is one implementation under test.
type Stores struct {
	Channels  repository.ChannelRepository
	Groups    repository.GroupRepository
	Members   repository.MembershipRepository
	Messages  repository.MessageRepository
	Reactions repository.ReactionRepository
	Users     repository.UserRepository

	// AddUser registers u the way the identity service would.
	AddUser func(t *testing.T, u models.User)
}

// Run executes the suite. open is called once per subtest; every subtest
// works in a fresh tenant, so a shared database needs no cleanup.
func Run(t *testing.T, open func(t *testing.T) Stores) {
	t.Run("ListVisible", func(t *testing.T) { testListVisible(t, newEnv(t, open(t))) })
	t.Run("MessageList", func(t *testing.T) { testMessageList(t, newEnv(t, open(t))) })
	t.Run("UnreadSummary", func(t *testing.T) { testUnreadSummary(t, newEnv(t, open(t))) })
	t.Run("ReplyCounter", func(t *testing.T) { testReplyCounter(t, newEnv(t, open(t))) })
	t.Run("Reactions", func(t *testing.T) { testReactions(t, newEnv(t, open(t))) })
	t.Run("MissingFromTenant", func(t *testing.T) { testMissingFromTenant(t, newEnv(t, open(t))) })
}

var ctx = context.Background()

type env struct {
	t      *testing.T
	s      Stores
	tenant uuid.UUID
}

func newEnv(t *testing.T, s Stores) *env {
	return &env{t: t, s: s, tenant: uuid.New()}
}

func (e *env) user() uuid.UUID {
	return e.userIn(e.tenant)
}

func (e *env) userIn(tenant uuid.UUID) uuid.UUID {
	id := uuid.New()
	e.s.AddUser(e.t, models.User{
		ID:          id,
		TenantID:    tenant,
		Email:       id.String() + "@echothread.test",
		DisplayName: "user " + id.String()[:8],
	})
	return id
}

func (e *env) channel(owner uuid.UUID, name string, typ models.ChannelType, dept *uuid.UUID) *models.Channel {
	e.t.Helper()
	ch, err := e.s.Channels.Create(ctx, &models.Channel{
		TenantID:     e.tenant,
		Name:         name,
		Type:         typ,
		DepartmentID: dept,
		CreatedBy:    owner,
	})
	require.NoError(e.t, err)
	return ch
}

func (e *env) join(conv models.Target, users ...uuid.UUID) {
	e.t.Helper()
	for _, u := range users {
		_, err := e.s.Members.Add(ctx, conv, u, models.RoleMember)
		require.NoError(e.t, err)
	}
}

func (e *env) send(sender uuid.UUID, conv models.Target, parent *models.Message, content string) *models.Message {
	e.t.Helper()
	in := models.NewMessage{TenantID: e.tenant, Target: conv, SenderID: sender, Content: content}
	if parent != nil {
		in.ParentMessageID = &parent.ID
	}
	msg, err := e.s.Messages.Create(ctx, in)
	require.NoError(e.t, err)
	return msg
}

func (e *env) list(f models.MessageFilter) []int64 {
	e.t.Helper()
	if f.Limit == 0 {
		f.Limit = 50
	}
	msgs, err := e.s.Messages.List(ctx, e.tenant, f)
	require.NoError(e.t, err)
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func names(channels []models.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = ch.Name
	}
	return out
}

func testListVisible(t *testing.T, e *env) {
	a, b := e.user(), e.user()
	dept := uuid.New()
	e.channel(a, "general", models.ChannelPublic, nil)
	e.channel(a, "core", models.ChannelPrivate, nil)
	d := e.channel(a, "dept", models.ChannelDepartment, &dept)
	old := e.channel(a, "old", models.ChannelPublic, nil)
	e.join(d.Target(), b)

	archived := true
	_, err := e.s.Channels.Update(ctx, e.tenant, old.ID, models.ChannelPatch{IsArchived: &archived})
	require.NoError(t, err)

	visible := func(user uuid.UUID, f models.ChannelFilter) []string {
		t.Helper()
		chs, err := e.s.Channels.ListVisible(ctx, e.tenant, user, f)
		require.NoError(t, err)
		require.NotNil(t, chs)
		return names(chs)
	}

	require.ElementsMatch(t, []string{"general", "core", "dept", "old"}, visible(a, models.ChannelFilter{}))
	require.ElementsMatch(t, []string{"general", "dept", "old"}, visible(b, models.ChannelFilter{}))
	require.Empty(t, visible(b, models.ChannelFilter{Type: models.ChannelPrivate}))
	require.Equal(t, []string{"dept"}, visible(a, models.ChannelFilter{DepartmentID: &dept}))

	live := false
	require.ElementsMatch(t, []string{"general", "core", "dept"}, visible(a, models.ChannelFilter{Archived: &live}))
	require.Equal(t, []string{"old"}, visible(b, models.ChannelFilter{Archived: &archived}))

	chs, err := e.s.Channels.ListVisible(ctx, uuid.New(), a, models.ChannelFilter{})
	require.NoError(t, err)
	require.Empty(t, chs)
}

func testMessageList(t *testing.T, e *env) {
	a, b := e.user(), e.user()
	ch := e.channel(a, "general", models.ChannelPublic, nil)
	e.join(ch.Target(), b)

	var m [6]*models.Message
	for i := 1; i <= 5; i++ {
		sender := a
		if i == 3 {
			sender = b
		}
		m[i] = e.send(sender, ch.Target(), nil, fmt.Sprintf("msg %d", i))
	}
	reply := e.send(b, ch.Target(), m[2], "in thread")
	_, err := e.s.Messages.SoftDelete(ctx, e.tenant, m[4].ID)
	require.NoError(t, err)

	target := ch.Target()
	all := []int64{m[1].ID, m[2].ID, m[3].ID, m[4].ID, m[5].ID}
	require.Equal(t, all, e.list(models.MessageFilter{Target: target}))
	require.Equal(t, []int64{m[2].ID, m[3].ID}, e.list(models.MessageFilter{Target: target, Before: m[4].ID, Limit: 2}))
	require.Equal(t, []int64{m[3].ID, m[4].ID}, e.list(models.MessageFilter{Target: target, Offset: 1, Limit: 2}))
	require.Equal(t, []int64{m[3].ID}, e.list(models.MessageFilter{Target: target, SenderID: &b}))
	require.Equal(t, []int64{m[1].ID, m[2].ID, m[3].ID, m[5].ID}, e.list(models.MessageFilter{Target: target, LiveOnly: true}))
	require.Equal(t, []int64{m[5].ID}, e.list(models.MessageFilter{Target: target, Query: "MSG 5"}))
	require.Equal(t, []int64{m[1].ID, m[2].ID, m[3].ID, m[5].ID}, e.list(models.MessageFilter{Target: target, Query: "msg"}))
	require.Equal(t, []int64{reply.ID}, e.list(models.MessageFilter{Target: target, ParentID: &m[2].ID}))

	msgs, err := e.s.Messages.List(ctx, uuid.New(), models.MessageFilter{Target: target, Limit: 50})
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func testUnreadSummary(t *testing.T, e *env) {
	a, b := e.user(), e.user()
	ch := e.channel(a, "general", models.ChannelPublic, nil)
	e.join(ch.Target(), b)
	g, err := e.s.Groups.Create(ctx, &models.Group{TenantID: e.tenant, Name: "pair", CreatedBy: a}, []models.NewMember{
		{UserID: a, Role: models.RoleOwner},
		{UserID: b, Role: models.RoleMember},
	})
	require.NoError(t, err)

	c1 := e.send(a, ch.Target(), nil, "one")
	c2 := e.send(a, ch.Target(), nil, "two")
	e.send(b, ch.Target(), nil, "mine")
	e.send(a, ch.Target(), c1, "reply")
	gone := e.send(a, ch.Target(), nil, "gone")
	_, err = e.s.Messages.SoftDelete(ctx, e.tenant, gone.ID)
	require.NoError(t, err)
	e.send(a, g.Target(), nil, "hi")

	summary := func(user uuid.UUID) []models.UnreadCount {
		t.Helper()
		out, err := e.s.Messages.UnreadSummary(ctx, e.tenant, user)
		require.NoError(t, err)
		return out
	}

	require.ElementsMatch(t, []models.UnreadCount{
		{Conversation: ch.Target(), Count: 3},
		{Conversation: g.Target(), Count: 1},
	}, summary(b))
	n, err := e.s.Messages.CountUnread(ctx, e.tenant, ch.Target(), b, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	m, err := e.s.Members.AdvanceReadPointer(ctx, ch.Target(), b, c2.ID)
	require.NoError(t, err)
	require.Equal(t, c2.ID, m.LastReadMessageID)
	m, err = e.s.Members.AdvanceReadPointer(ctx, ch.Target(), b, c1.ID)
	require.NoError(t, err)
	require.Equal(t, c2.ID, m.LastReadMessageID)

	require.ElementsMatch(t, []models.UnreadCount{
		{Conversation: ch.Target(), Count: 1},
		{Conversation: g.Target(), Count: 1},
	}, summary(b))
	require.ElementsMatch(t, []models.UnreadCount{
		{Conversation: ch.Target(), Count: 1},
		{Conversation: g.Target(), Count: 0},
	}, summary(a))

	require.Empty(t, summary(e.user()))
}

func testReplyCounter(t *testing.T, e *env) {
	a := e.user()
	ch := e.channel(a, "general", models.ChannelPublic, nil)
	other := e.channel(a, "other", models.ChannelPublic, nil)
	parent := e.send(a, ch.Target(), nil, "root")

	e.send(a, ch.Target(), parent, "r1")
	e.send(a, ch.Target(), parent, "r2")
	got, err := e.s.Messages.GetByID(ctx, e.tenant, parent.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.ThreadReplyCount)

	_, err = e.s.Messages.Create(ctx, models.NewMessage{
		TenantID: e.tenant, Target: other.Target(), SenderID: a, Content: "x", ParentMessageID: &parent.ID,
	})
	require.ErrorIs(t, err, repository.ErrInvalidParent)

	_, err = e.s.Messages.SoftDelete(ctx, e.tenant, parent.ID)
	require.NoError(t, err)
	_, err = e.s.Messages.Create(ctx, models.NewMessage{
		TenantID: e.tenant, Target: ch.Target(), SenderID: a, Content: "late", ParentMessageID: &parent.ID,
	})
	require.ErrorIs(t, err, repository.ErrInvalidParent)

	got, err = e.s.Messages.GetByID(ctx, e.tenant, parent.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted)
	require.Equal(t, 2, got.ThreadReplyCount)

	missing, err := e.s.Messages.GetByID(ctx, e.tenant, parent.ID+1000)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func testReactions(t *testing.T, e *env) {
	a, b := e.user(), e.user()
	ch := e.channel(a, "general", models.ChannelPublic, nil)
	msg := e.send(a, ch.Target(), nil, "react to me")

	first, created, err := e.s.Reactions.Add(ctx, &models.Reaction{TenantID: e.tenant, MessageID: msg.ID, UserID: a, Emoji: "👍"})
	require.NoError(t, err)
	require.True(t, created)
	again, created, err := e.s.Reactions.Add(ctx, &models.Reaction{TenantID: e.tenant, MessageID: msg.ID, UserID: a, Emoji: "👍"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
	_, _, err = e.s.Reactions.Add(ctx, &models.Reaction{TenantID: e.tenant, MessageID: msg.ID, UserID: b, Emoji: "👍"})
	require.NoError(t, err)

	rows, err := e.s.Reactions.ListByMessages(ctx, e.tenant, []int64{msg.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Less(t, rows[0].ID, rows[1].ID)

	removed, err := e.s.Reactions.DeleteByKey(ctx, e.tenant, msg.ID, a, "👍")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = e.s.Reactions.DeleteByKey(ctx, e.tenant, msg.ID, a, "👍")
	require.NoError(t, err)
	require.False(t, removed)

	gone, err := e.s.Reactions.GetByID(ctx, e.tenant, first.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func testMissingFromTenant(t *testing.T, e *env) {
	u1, u2 := e.user(), e.user()
	stranger := e.userIn(uuid.New())
	unknown := uuid.New()

	missing, err := e.s.Users.MissingFromTenant(ctx, e.tenant, []uuid.UUID{u1, stranger, u2, unknown})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{stranger, unknown}, missing)

	missing, err = e.s.Users.MissingFromTenant(ctx, e.tenant, []uuid.UUID{u2, u1})
	require.NoError(t, err)
	require.Empty(t, missing)

	u, err := e.s.Users.GetByID(ctx, e.tenant, stranger)
	require.NoError(t, err)
	require.Nil(t, u)
}
