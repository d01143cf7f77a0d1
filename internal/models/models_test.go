package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTargetFromIDs(t *testing.T) {
	ch, g := uuid.New(), uuid.New()

	target, err := TargetFromIDs(&ch, nil)
	require.NoError(t, err)
	require.Equal(t, ChannelTarget(ch), target)
	id, ok := target.ChannelID()
	require.True(t, ok)
	require.Equal(t, ch, id)
	_, ok = target.GroupID()
	require.False(t, ok)

	target, err = TargetFromIDs(nil, &g)
	require.NoError(t, err)
	require.Equal(t, KindGroup, target.Kind())

	_, err = TargetFromIDs(&ch, &g)
	require.Error(t, err)
	_, err = TargetFromIDs(nil, nil)
	require.Error(t, err)
	_, err = TargetFromIDs(&uuid.Nil, nil)
	require.Error(t, err)
}

func TestTargetColumns(t *testing.T) {
	id := uuid.New()
	ch, g := GroupTarget(id).Columns()
	require.Nil(t, ch)
	require.Equal(t, id, *g)

	ch, g = Target{}.Columns()
	require.Nil(t, ch)
	require.Nil(t, g)
}

func TestTargetJSON(t *testing.T) {
	id := uuid.MustParse("6f1c2a3e-0000-4000-8000-000000000001")
	raw, err := json.Marshal(ChannelTarget(id))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"channel","id":"6f1c2a3e-0000-4000-8000-000000000001"}`, string(raw))

	var back Target
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, ChannelTarget(id), back)

	raw, err = json.Marshal(Target{})
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))

	require.Error(t, json.Unmarshal([]byte(`{"kind":"dm","id":"6f1c2a3e-0000-4000-8000-000000000001"}`), &back))
}

func TestNormalizeChannelName(t *testing.T) {
	for in, want := range map[string]string{
		"general":         "general",
		"  Team Updates ": "team-updates",
		"a\tb   c":        "a-b-c",
		"   ":             "",
	} {
		require.Equal(t, want, NormalizeChannelName(in), in)
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"": RoleMember, "Admin": RoleAdmin, " owner ": RoleOwner} {
		got, ok := ParseRole(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	_, ok := ParseRole("root")
	require.False(t, ok)

	require.True(t, RoleAdmin.Privileged())
	require.False(t, RoleMember.Privileged())
}

func TestChannelTypes(t *testing.T) {
	require.True(t, ChannelPublic.OpenToTenant())
	require.False(t, ChannelPrivate.OpenToTenant())
	require.False(t, ChannelDepartment.OpenToTenant())
	require.True(t, ChannelDepartment.Valid())
	require.False(t, ChannelType("secret").Valid())
}

func TestGroupReactions(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	rows := []Reaction{
		{ID: 1, UserID: a, Emoji: "🎉"},
		{ID: 2, UserID: b, Emoji: "👍"},
		{ID: 3, UserID: c, Emoji: "🎉"},
		{ID: 4, UserID: a, Emoji: "👍"},
	}

	groups := GroupReactions(rows)
	require.Equal(t, []ReactionGroup{
		{Emoji: "🎉", Count: 2, UserIDs: []uuid.UUID{a, c}},
		{Emoji: "👍", Count: 2, UserIDs: []uuid.UUID{b, a}},
	}, groups)

	require.True(t, HasReacted(groups, "👍", a))
	require.False(t, HasReacted(groups, "👍", c))
	require.False(t, HasReacted(groups, "🔥", a))

	require.Empty(t, GroupReactions(nil))
}

func TestRedacted(t *testing.T) {
	parent := int64(7)
	m := Message{
		ID:               9,
		ParentMessageID:  &parent,
		Content:          "secret",
		File:             &FileRef{URL: "https://x.test/f", Name: "f"},
		ThreadReplyCount: 3,
	}
	require.Equal(t, m, m.Redacted())

	m.IsDeleted = true
	r := m.Redacted()
	require.Empty(t, r.Content)
	require.Nil(t, r.File)
	require.Equal(t, 3, r.ThreadReplyCount)
	require.Equal(t, &parent, r.ParentMessageID)
	require.Equal(t, "secret", m.Content)
}

func TestIdentityIsModerator(t *testing.T) {
	require.True(t, Identity{Role: "admin"}.IsModerator())
	require.True(t, Identity{Role: "owner"}.IsModerator())
	require.False(t, Identity{Role: "member"}.IsModerator())
	require.False(t, Identity{}.IsModerator())
}
