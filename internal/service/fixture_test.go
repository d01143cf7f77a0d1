package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ctx = context.Background()

type fixture struct {
	t      *testing.T
	mem    *memory.Store
	engine *Engine
	tenant uuid.UUID
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	mem := memory.New()
	stores := Stores{
		Channels:  mem.Channels(),
		Groups:    mem.Groups(),
		Members:   mem.Memberships(),
		Messages:  mem.Messages(),
		Reactions: mem.Reactions(),
		Mentions:  mem.Mentions(),
		Users:     mem.Users(),
	}
	return &fixture{
		t:      t,
		mem:    mem,
		engine: New(stores, opts, zap.NewNop()),
		tenant: uuid.New(),
	}
}

// user registers a plain user in the fixture's tenant.
func (f *fixture) user() models.Identity {
	return f.userIn(f.tenant, "")
}

func (f *fixture) userIn(tenant uuid.UUID, role string) models.Identity {
	id := models.Identity{TenantID: tenant, UserID: uuid.New(), Role: role}
	f.mem.AddUser(models.User{ID: id.UserID, TenantID: tenant})
	return id
}

func (f *fixture) channel(owner models.Identity, name string, typ models.ChannelType) *models.Channel {
	f.t.Helper()
	ch, err := f.engine.Conversations.CreateChannel(ctx, owner, CreateChannelInput{Name: name, Type: typ})
	require.NoError(f.t, err)
	return ch
}

func (f *fixture) join(owner models.Identity, target models.Target, users ...models.Identity) {
	f.t.Helper()
	for _, u := range users {
		_, err := f.engine.Access.AddMember(ctx, owner, target, u.UserID, models.RoleMember)
		require.NoError(f.t, err)
	}
}

func (f *fixture) send(sender models.Identity, target models.Target, content string) *models.Message {
	f.t.Helper()
	msg, err := f.engine.Messages.Send(ctx, sender, SendInput{Target: target, Content: content})
	require.NoError(f.t, err)
	return msg
}

func (f *fixture) reply(sender models.Identity, parent *models.Message, content string) *models.Message {
	f.t.Helper()
	msg, err := f.engine.Messages.Send(ctx, sender, SendInput{ParentMessageID: &parent.ID, Content: content})
	require.NoError(f.t, err)
	return msg
}

func (f *fixture) unread(u models.Identity, target models.Target) int {
	f.t.Helper()
	n, err := f.engine.ReadState.UnreadCount(ctx, u, target)
	require.NoError(f.t, err)
	return n
}

func ids(views []models.MessageView) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}
