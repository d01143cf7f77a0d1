package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, size int) (*WindowCache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWindowCache(client, "test:conv", time.Minute, size), server
}

func window(ids ...int64) models.MessageWindow {
	w := models.MessageWindow{Messages: make([]models.Message, 0, len(ids))}
	for _, id := range ids {
		w.Messages = append(w.Messages, models.Message{ID: id, Content: "m"})
	}
	return w
}

func windowIDs(w *models.MessageWindow) []int64 {
	out := make([]int64, 0, len(w.Messages))
	for _, m := range w.Messages {
		out = append(out, m.ID)
	}
	return out
}

func TestGetMissThenFill(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)
	tenant, target := uuid.New(), models.ChannelTarget(uuid.New())

	w, version, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Nil(t, w)
	require.Zero(t, version)

	require.NoError(t, c.Fill(ctx, tenant, target, version, window(1, 2)))

	w, _, err = c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, []int64{1, 2}, windowIDs(w))
}

func TestStaleFillIsSkipped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)
	tenant, target := uuid.New(), models.GroupTarget(uuid.New())

	_, version, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)

	// A write lands between the miss and the fill.
	require.NoError(t, c.Invalidate(ctx, tenant, target))
	require.NoError(t, c.Fill(ctx, tenant, target, version, window(1)))

	w, newVersion, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Nil(t, w)
	require.Equal(t, version+1, newVersion)
}

func TestAppendKeepsOrderAndSize(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)
	tenant, target := uuid.New(), models.ChannelTarget(uuid.New())

	_, version, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.NoError(t, c.Fill(ctx, tenant, target, version, window(1, 3)))

	require.NoError(t, c.Append(ctx, tenant, target, models.Message{ID: 2}))
	w, _, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, windowIDs(w))

	require.NoError(t, c.Append(ctx, tenant, target, models.Message{ID: 4}))
	require.NoError(t, c.Append(ctx, tenant, target, models.Message{ID: 4}))
	w, _, err = c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3, 4}, windowIDs(w))
}

func TestAppendWithoutWindowMovesVersion(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)
	tenant, target := uuid.New(), models.ChannelTarget(uuid.New())

	_, version, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.NoError(t, c.Append(ctx, tenant, target, models.Message{ID: 1}))

	// The reader's fill predates the append and must not land.
	require.NoError(t, c.Fill(ctx, tenant, target, version, window()))
	w, _, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Nil(t, w)
}

func TestInvalidateDropsWindow(t *testing.T) {
	ctx := context.Background()
	c, server := newTestCache(t, 3)
	tenant, target := uuid.New(), models.ChannelTarget(uuid.New())

	require.NoError(t, c.Fill(ctx, tenant, target, 0, window(1)))
	require.NoError(t, c.Invalidate(ctx, tenant, target))

	w, _, err := c.Get(ctx, tenant, target)
	require.NoError(t, err)
	require.Nil(t, w)

	winKey, verKey := c.keys(tenant, target)
	require.False(t, server.Exists(winKey))
	require.True(t, server.Exists(verKey))
	require.Equal(t, versionTTL, server.TTL(verKey))
}

func TestTenantsDoNotShareWindows(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)
	target := models.ChannelTarget(uuid.New())
	a, b := uuid.New(), uuid.New()

	require.NoError(t, c.Fill(ctx, a, target, 0, window(1)))
	w, _, err := c.Get(ctx, b, target)
	require.NoError(t, err)
	require.Nil(t, w)
}

func TestAppendWindow(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		add  int64
		size int
		want []int64
	}{
		{"empty", nil, 1, 2, []int64{1}},
		{"newest", []int64{1, 2}, 3, 5, []int64{1, 2, 3}},
		{"out of order", []int64{1, 3}, 2, 5, []int64{1, 2, 3}},
		{"duplicate", []int64{1, 2}, 2, 5, []int64{1, 2}},
		{"trim", []int64{1, 2}, 3, 2, []int64{2, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := appendWindow(window(tc.in...), models.Message{ID: tc.add}, tc.size)
			require.Equal(t, tc.want, windowIDs(&got))
		})
	}
}
