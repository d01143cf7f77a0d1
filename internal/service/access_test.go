package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/stretchr/testify/require"
)

func TestAddMember(t *testing.T) {
	f := newFixture(t, Options{})
	owner, admin, member, joiner := f.user(), f.user(), f.user(), f.user()
	ch := f.channel(owner, "general", models.ChannelPublic)

	_, err := f.engine.Access.AddMember(ctx, owner, ch.Target(), admin.UserID, models.RoleAdmin)
	require.NoError(t, err)
	f.join(owner, ch.Target(), member)

	_, err = f.engine.Access.AddMember(ctx, owner, ch.Target(), member.UserID, models.RoleMember)
	require.ErrorIs(t, err, ErrAlreadyMember)
	require.Equal(t, KindConflict, KindOf(err))

	_, err = f.engine.Access.AddMember(ctx, member, ch.Target(), uuid.New(), models.RoleMember)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Access.AddMember(ctx, admin, ch.Target(), joiner.UserID, models.RoleOwner)
	require.ErrorIs(t, err, ErrOwnerRequired)

	_, err = f.engine.Access.AddMember(ctx, owner, ch.Target(), joiner.UserID, "superuser")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.engine.Access.AddMember(ctx, owner, ch.Target(), uuid.New(), models.RoleMember)
	require.ErrorIs(t, err, ErrUserNotFound)

	stranger := f.userIn(uuid.New(), "")
	_, err = f.engine.Access.AddMember(ctx, owner, ch.Target(), stranger.UserID, models.RoleMember)
	require.ErrorIs(t, err, ErrUserNotFound)

	m, err := f.engine.Access.AddMember(ctx, joiner, ch.Target(), joiner.UserID, models.RoleMember)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, m.Role)
	require.Zero(t, m.LastReadMessageID)
}

func TestSelfJoinNeedsOpenChannel(t *testing.T) {
	f := newFixture(t, Options{})
	owner, joiner := f.user(), f.user()
	private := f.channel(owner, "leads", models.ChannelPrivate)
	dept := f.channel(owner, "finance", models.ChannelDepartment)

	for _, ch := range []*models.Channel{private, dept} {
		_, err := f.engine.Access.AddMember(ctx, joiner, ch.Target(), joiner.UserID, models.RoleMember)
		require.ErrorIs(t, err, ErrForbidden, ch.Name)
	}

	public := f.channel(owner, "general", models.ChannelPublic)
	_, err := f.engine.Access.AddMember(ctx, joiner, public.Target(), joiner.UserID, models.RoleAdmin)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t, Options{})
	owner, admin, member, nobody := f.user(), f.user(), f.user(), f.user()
	ch := f.channel(owner, "general", models.ChannelPublic)
	_, err := f.engine.Access.AddMember(ctx, owner, ch.Target(), admin.UserID, models.RoleAdmin)
	require.NoError(t, err)
	f.join(owner, ch.Target(), member)
	m := f.send(member, ch.Target(), "bye")

	require.ErrorIs(t, f.engine.Access.RemoveMember(ctx, member, ch.Target(), admin.UserID), ErrForbidden)
	require.ErrorIs(t, f.engine.Access.RemoveMember(ctx, admin, ch.Target(), owner.UserID), ErrOwnerRequired)
	require.ErrorIs(t, f.engine.Access.RemoveMember(ctx, admin, ch.Target(), nobody.UserID), ErrNotMember)
	require.ErrorIs(t, f.engine.Access.RemoveMember(ctx, nobody, ch.Target(), nobody.UserID), ErrNotMember)

	require.NoError(t, f.engine.Access.RemoveMember(ctx, admin, ch.Target(), member.UserID))
	ok, err := f.engine.Access.IsMember(ctx, ch.Target(), member.UserID)
	require.NoError(t, err)
	require.False(t, ok)

	// History survives the removal.
	got, err := f.engine.Query.GetMessage(ctx, owner, m.ID)
	require.NoError(t, err)
	require.Equal(t, "bye", got.Content)

	require.NoError(t, f.engine.Access.RemoveMember(ctx, admin, ch.Target(), admin.UserID))
}

func TestDMMembershipIsFixed(t *testing.T) {
	f := newFixture(t, Options{})
	u1, u2, u3 := f.user(), f.user(), f.user()
	dm, err := f.engine.Conversations.CreateGroup(ctx, u1, CreateGroupInput{IsDM: true, MemberIDs: []uuid.UUID{u2.UserID}})
	require.NoError(t, err)

	_, err = f.engine.Access.AddMember(ctx, u1, dm.Target(), u3.UserID, models.RoleMember)
	require.ErrorIs(t, err, ErrDMMembership)
	require.ErrorIs(t, f.engine.Access.RemoveMember(ctx, u1, dm.Target(), u1.UserID), ErrDMMembership)
}

func TestArchivedChannelRejectsMembers(t *testing.T) {
	f := newFixture(t, Options{})
	owner, joiner := f.user(), f.user()
	ch := f.channel(owner, "old", models.ChannelPublic)
	_, err := f.engine.Conversations.UpdateChannel(ctx, owner, ch.ID, models.ChannelPatch{IsArchived: ptr(true)})
	require.NoError(t, err)

	_, err = f.engine.Access.AddMember(ctx, owner, ch.Target(), joiner.UserID, models.RoleMember)
	require.ErrorIs(t, err, ErrArchived)
}

func TestCanWrite(t *testing.T) {
	f := newFixture(t, Options{})
	owner, member, outsider := f.user(), f.user(), f.user()
	ch, err := f.engine.Conversations.CreateChannel(ctx, owner, CreateChannelInput{Name: "news", IsReadOnly: true})
	require.NoError(t, err)
	f.join(owner, ch.Target(), member)

	conv, err := f.engine.Access.Resolve(ctx, f.tenant, ch.Target())
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		user models.Identity
		want bool
	}{
		{"owner", owner, true},
		{"member", member, false},
		{"outsider", outsider, false},
	} {
		ok, err := f.engine.Access.CanWrite(ctx, conv, tc.user.UserID)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, ok, tc.name)
	}
}

func TestResolveIsTenantScoped(t *testing.T) {
	f := newFixture(t, Options{})
	owner := f.user()
	ch := f.channel(owner, "general", models.ChannelPublic)

	_, err := f.engine.Access.Resolve(ctx, uuid.New(), ch.Target())
	require.ErrorIs(t, err, ErrChannelNotFound)
	_, err = f.engine.Access.Resolve(ctx, f.tenant, models.GroupTarget(uuid.New()))
	require.ErrorIs(t, err, ErrGroupNotFound)
	_, err = f.engine.Access.Resolve(ctx, f.tenant, models.Target{})
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestSetMuted(t *testing.T) {
	f := newFixture(t, Options{})
	owner, outsider := f.user(), f.user()
	ch := f.channel(owner, "general", models.ChannelPublic)

	m, err := f.engine.Access.SetMuted(ctx, owner, ch.Target(), true)
	require.NoError(t, err)
	require.True(t, m.IsMuted)

	_, err = f.engine.Access.SetMuted(ctx, outsider, ch.Target(), true)
	require.ErrorIs(t, err, ErrMembershipRequired)
}
