package service

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioUnreadAfterMarkRead(t *testing.T) {
	f := newFixture(t, Options{})
	u1, u2 := f.user(), f.user()
	general := f.channel(u1, "general", models.ChannelPublic)
	f.join(u1, general.Target(), u2)

	var last *models.Message
	for _, text := range []string{"one", "two", "three"} {
		last = f.send(u1, general.Target(), text)
	}
	require.Equal(t, 3, f.unread(u2, general.Target()))

	_, err := f.engine.ReadState.MarkRead(ctx, u2, general.Target(), last.ID)
	require.NoError(t, err)
	require.Equal(t, 0, f.unread(u2, general.Target()))
}

func TestScenarioThreadReplies(t *testing.T) {
	f := newFixture(t, Options{})
	u1, u2, u3 := f.user(), f.user(), f.user()
	ch := f.channel(u1, "general", models.ChannelPublic)
	f.join(u1, ch.Target(), u2, u3)

	m := f.send(u1, ch.Target(), "question")
	r2 := f.reply(u2, m, "answer from 2")
	r3 := f.reply(u3, m, "answer from 3")
	require.Equal(t, ch.Target(), r2.Target)

	got, err := f.engine.Query.GetMessage(ctx, u1, m.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.ThreadReplyCount)

	page, err := f.engine.Query.ListMessages(ctx, u1, models.MessageFilter{ParentID: &m.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{r2.ID, r3.ID}, ids(page.Messages))
	require.False(t, page.HasMore)

	// Replies stay out of the top-level listing.
	top, err := f.engine.Query.ListMessages(ctx, u1, models.MessageFilter{Target: ch.Target()})
	require.NoError(t, err)
	require.Equal(t, []int64{m.ID}, ids(top.Messages))
}

func TestScenarioFileMessageEditAndDelete(t *testing.T) {
	f := newFixture(t, Options{})
	u1, u2 := f.user(), f.user()
	ch := f.channel(u1, "files", models.ChannelPublic)
	f.join(u1, ch.Target(), u2)

	file := &models.FileRef{URL: "https://blobs.example.com/a/report.pdf", Name: "report.pdf", Size: 2048}
	m, err := f.engine.Messages.Send(ctx, u1, SendInput{Target: ch.Target(), File: file})
	require.NoError(t, err)
	reply := f.reply(u2, m, "thanks")

	_, err = f.engine.Messages.Edit(ctx, u2, m.ID, "hijacked")
	require.ErrorIs(t, err, ErrNotSender)
	require.Equal(t, KindForbidden, KindOf(err))

	_, err = f.engine.Messages.Delete(ctx, u1, m.ID)
	require.NoError(t, err)

	got, err := f.engine.Query.GetMessage(ctx, u2, m.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted)
	require.Empty(t, got.Content)
	require.Nil(t, got.File)
	require.Equal(t, 1, got.ThreadReplyCount)

	page, err := f.engine.Query.ListMessages(ctx, u2, models.MessageFilter{Target: ch.Target()})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.True(t, page.Messages[0].IsDeleted)

	thread, err := f.engine.Query.ListMessages(ctx, u2, models.MessageFilter{ParentID: &m.ID})
	require.NoError(t, err)
	require.Equal(t, []int64{reply.ID}, ids(thread.Messages))
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, Options{})
	u1, outsider := f.user(), f.user()
	ch := f.channel(u1, "general", models.ChannelPublic)
	other := f.channel(u1, "random", models.ChannelPublic)
	parent := f.send(u1, ch.Target(), "parent")
	otherParent := f.send(u1, other.Target(), "elsewhere")

	tests := []struct {
		name  string
		actor models.Identity
		in    SendInput
		want  error
	}{
		{"empty content", u1, SendInput{Target: ch.Target(), Content: "   "}, ErrEmptyMessage},
		{"no target", u1, SendInput{Content: "hi"}, ErrInvalidTarget},
		{"bad file", u1, SendInput{Target: ch.Target(), File: &models.FileRef{Name: "x"}}, ErrInvalidFile},
		{"missing parent", u1, SendInput{Target: ch.Target(), Content: "hi", ParentMessageID: ptr(int64(9999))}, ErrInvalidParent},
		{"parent elsewhere", u1, SendInput{Target: ch.Target(), Content: "hi", ParentMessageID: &otherParent.ID}, ErrInvalidParent},
		{"non member", outsider, SendInput{Target: ch.Target(), Content: "hi"}, ErrMembershipRequired},
		{"reply non member", outsider, SendInput{ParentMessageID: &parent.ID, Content: "hi"}, ErrMembershipRequired},
		{"unknown channel", u1, SendInput{Target: models.ChannelTarget(uuid.New()), Content: "hi"}, ErrChannelNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Messages.Send(ctx, tc.actor, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	page, err := f.engine.Query.ListMessages(ctx, u1, models.MessageFilter{Target: ch.Target()})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
}

func TestSendToDeletedParentIsInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	u1 := f.user()
	ch := f.channel(u1, "general", models.ChannelPublic)
	parent := f.send(u1, ch.Target(), "soon gone")
	_, err := f.engine.Messages.Delete(ctx, u1, parent.ID)
	require.NoError(t, err)

	_, err = f.engine.Messages.Send(ctx, u1, SendInput{ParentMessageID: &parent.ID, Content: "late"})
	require.ErrorIs(t, err, ErrInvalidParent)
}

func TestReadOnlyChannel(t *testing.T) {
	f := newFixture(t, Options{})
	owner, member := f.user(), f.user()
	ch, err := f.engine.Conversations.CreateChannel(ctx, owner, CreateChannelInput{Name: "announcements", IsReadOnly: true})
	require.NoError(t, err)
	f.join(owner, ch.Target(), member)

	_, err = f.engine.Messages.Send(ctx, member, SendInput{Target: ch.Target(), Content: "hello"})
	require.ErrorIs(t, err, ErrReadOnly)

	f.send(owner, ch.Target(), "release notes")
}

func TestThreadCounterSurvivesDelete(t *testing.T) {
	f := newFixture(t, Options{})
	u1, u2 := f.user(), f.user()
	ch := f.channel(u1, "general", models.ChannelPublic)
	f.join(u1, ch.Target(), u2)

	parent := f.send(u1, ch.Target(), "thread")
	const n = 4
	replies := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		replies = append(replies, f.reply(u2, parent, "reply"))
	}
	_, err := f.engine.Messages.Delete(ctx, u2, replies[1].ID)
	require.NoError(t, err)

	got, err := f.engine.Query.GetMessage(ctx, u1, parent.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.ThreadReplyCount)

	live, err := f.engine.Query.ListMessages(ctx, u1, models.MessageFilter{ParentID: &parent.ID, LiveOnly: true})
	require.NoError(t, err)
	require.Len(t, live.Messages, n-1)

	all, err := f.engine.Query.ListMessages(ctx, u1, models.MessageFilter{ParentID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, all.Messages, n)
}

func TestConcurrentRepliesCountExactly(t *testing.T) {
	f := newFixture(t, Options{})
	owner := f.user()
	ch := f.channel(owner, "busy", models.ChannelPublic)
	parent := f.send(owner, ch.Target(), "thread")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Messages.Send(ctx, owner, SendInput{ParentMessageID: &parent.ID, Content: "reply"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.engine.Query.GetMessage(ctx, owner, parent.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.ThreadReplyCount)
}

func TestIDsAreTenantOrderedUnderConcurrency(t *testing.T) {
	f := newFixture(t, Options{})
	owner := f.user()
	a := f.channel(owner, "a", models.ChannelPublic)
	b := f.channel(owner, "b", models.ChannelPublic)

	const perChannel = 50
	var (
		mu  sync.Mutex
		all []int64
		wg  sync.WaitGroup
	)
	for _, target := range []models.Target{a.Target(), b.Target()} {
		for i := 0; i < perChannel; i++ {
			wg.Add(1)
			go func(target models.Target) {
				defer wg.Done()
				msg, err := f.engine.Messages.Send(ctx, owner, SendInput{Target: target, Content: "x"})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				all = append(all, msg.ID)
				mu.Unlock()
			}(target)
		}
	}
	wg.Wait()

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, id := range all {
		require.Equal(t, int64(i+1), id, "ids must be gapless and unique per tenant")
	}

	page, err := f.engine.Query.ListMessages(ctx, owner, models.MessageFilter{Target: a.Target(), Limit: 100})
	require.NoError(t, err)
	got := ids(page.Messages)
	require.Len(t, got, perChannel)
	require.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}

func TestPaginationReconstructsHistory(t *testing.T) {
	f := newFixture(t, Options{})
	owner := f.user()
	ch := f.channel(owner, "history", models.ChannelPublic)

	const total = 137
	want := make([]int64, 0, total)
	for i := 0; i < total; i++ {
		want = append(want, f.send(owner, ch.Target(), "m").ID)
	}

	var held []int64
	var before int64
	pages := 0
	for {
		page, err := f.engine.Query.ListMessages(ctx, owner, models.MessageFilter{Target: ch.Target(), Before: before, Limit: 50})
		require.NoError(t, err)
		pages++
		held = append(ids(page.Messages), held...)
		if !page.HasMore {
			break
		}
		require.Len(t, page.Messages, 50)
		before = page.OldestID
	}
	require.Equal(t, want, held)
	require.Equal(t, 3, pages)
}

func TestPageSizeDefaultsAndClamp(t *testing.T) {
	f := newFixture(t, Options{PageSize: 5, MaxPageSize: 8})
	owner := f.user()
	ch := f.channel(owner, "small", models.ChannelPublic)
	for i := 0; i < 12; i++ {
		f.send(owner, ch.Target(), "m")
	}

	page, err := f.engine.Query.ListMessages(ctx, owner, models.MessageFilter{Target: ch.Target()})
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	require.True(t, page.HasMore)

	page, err = f.engine.Query.ListMessages(ctx, owner, models.MessageFilter{Target: ch.Target(), Limit: 1000})
	require.NoError(t, err)
	require.Len(t, page.Messages, 8)
}

func TestEditAndDeleteRules(t *testing.T) {
	f := newFixture(t, Options{})
	owner, author, bystander := f.user(), f.user(), f.user()
	moderator := f.userIn(f.tenant, "admin")
	ch := f.channel(owner, "general", models.ChannelPublic)
	f.join(owner, ch.Target(), author, bystander)

	m := f.send(author, ch.Target(), "first draft")
	edited, err := f.engine.Messages.Edit(ctx, author, m.ID, "final")
	require.NoError(t, err)
	require.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)
	require.Equal(t, "final", edited.Content)

	_, err = f.engine.Messages.Edit(ctx, author, m.ID, "  ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.engine.Messages.Delete(ctx, bystander, m.ID)
	require.ErrorIs(t, err, ErrNotSender)

	// The channel owner moderates it.
	m2 := f.send(author, ch.Target(), "off topic")
	_, err = f.engine.Messages.Delete(ctx, owner, m2.ID)
	require.NoError(t, err)

	// Tenant moderators need no membership.
	m3 := f.send(author, ch.Target(), "spam")
	_, err = f.engine.Messages.Delete(ctx, moderator, m3.ID)
	require.NoError(t, err)

	_, err = f.engine.Messages.Delete(ctx, author, m3.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
	_, err = f.engine.Messages.Edit(ctx, author, m3.ID, "too late")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestCrossTenantMessageIsNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	owner := f.user()
	ch := f.channel(owner, "general", models.ChannelPublic)
	m := f.send(owner, ch.Target(), "secret")

	stranger := f.userIn(uuid.New(), "admin")
	_, err := f.engine.Query.GetMessage(ctx, stranger, m.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
	_, err = f.engine.Messages.Delete(ctx, stranger, m.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
	_, err = f.engine.Query.ListMessages(ctx, stranger, models.MessageFilter{Target: ch.Target()})
	require.ErrorIs(t, err, ErrChannelNotFound)
}

func ptr[T any](v T) *T { return &v }
