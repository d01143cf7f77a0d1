// Package cache keeps the newest page of every conversation in Redis so the
// common "open a conversation" read skips Postgres.
//
// Each conversation has two keys: the window itself and a version counter.
// Every write path bumps the version. A reader that missed remembers the
// version it saw, loads from Postgres, and stores the result only if the
// version has not moved, so a fill can never overwrite a newer append.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/observ"
	"github.com/redis/go-redis/v9"
)

// versionTTL outlives any window by far; the counter only has to survive a
// miss-then-fill round trip.
const versionTTL = 24 * time.Hour

var errStale = errors.New("cache: window version moved")

type WindowCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	size   int
}

// NewWindowCache holds size messages per conversation for ttl.
func NewWindowCache(client *redis.Client, prefix string, ttl time.Duration, size int) *WindowCache {
	return &WindowCache{client: client, prefix: prefix, ttl: ttl, size: size}
}

// Size is the number of messages a window holds.
func (c *WindowCache) Size() int { return c.size }

func (c *WindowCache) keys(tenantID uuid.UUID, target models.Target) (window, version string) {
	base := fmt.Sprintf("%s:{%s:%s}", c.prefix, tenantID, target)
	return base + ":window", base + ":ver"
}

// Get returns the cached window, or nil on a miss, together with the
// current version to hand back to Fill.
func (c *WindowCache) Get(ctx context.Context, tenantID uuid.UUID, target models.Target) (*models.MessageWindow, int64, error) {
	winKey, verKey := c.keys(tenantID, target)

	pipe := c.client.Pipeline()
	winCmd := pipe.Get(ctx, winKey)
	verCmd := pipe.Get(ctx, verKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("get window: %w", err)
	}

	version, err := verCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("get window version: %w", err)
	}

	raw, err := winCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		observ.MessageCache().WithLabelValues("miss").Inc()
		return nil, version, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get window: %w", err)
	}

	var w models.MessageWindow
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, version, fmt.Errorf("decode window: %w", err)
	}
	observ.MessageCache().WithLabelValues("hit").Inc()
	return &w, version, nil
}

// Fill stores w if the version is still the one Get returned. A moved
// version is not an error; the fill is just skipped.
func (c *WindowCache) Fill(ctx context.Context, tenantID uuid.UUID, target models.Target, version int64, w models.MessageWindow) error {
	winKey, verKey := c.keys(tenantID, target)

	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode window: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, winKey, payload, c.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
		observ.MessageCache().WithLabelValues("fill").Inc()
		return nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		observ.MessageCache().WithLabelValues("stale").Inc()
		return nil
	default:
		return fmt.Errorf("fill window: %w", err)
	}
}

// Append adds a freshly stored top-level message to a cached window. With
// no window cached only the version moves. If the window changes under us
// it is dropped instead.
func (c *WindowCache) Append(ctx context.Context, tenantID uuid.UUID, target models.Target, msg models.Message) error {
	winKey, verKey := c.keys(tenantID, target)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		var next []byte
		raw, err := tx.Get(ctx, winKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var w models.MessageWindow
			if err := json.Unmarshal(raw, &w); err != nil {
				return err
			}
			if next, err = json.Marshal(appendWindow(w, msg, c.size)); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if next != nil {
				p.Set(ctx, winKey, next, c.ttl)
			}
			p.Incr(ctx, verKey)
			p.Expire(ctx, verKey, versionTTL)
			return nil
		})
		return err
	}, winKey, verKey)
	if err != nil {
		observ.MessageCache().WithLabelValues("drop").Inc()
		return c.Invalidate(ctx, tenantID, target)
	}
	observ.MessageCache().WithLabelValues("append").Inc()
	return nil
}

// Invalidate drops the window and moves the version.
func (c *WindowCache) Invalidate(ctx context.Context, tenantID uuid.UUID, target models.Target) error {
	winKey, verKey := c.keys(tenantID, target)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, winKey)
	pipe.Incr(ctx, verKey)
	pipe.Expire(ctx, verKey, versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate window: %w", err)
	}
	observ.MessageCache().WithLabelValues("invalidate").Inc()
	return nil
}

// appendWindow inserts msg in id order and trims the window to size from
// the old end. Two senders may commit in one order and append in the other.
func appendWindow(w models.MessageWindow, msg models.Message, size int) models.MessageWindow {
	i := sort.Search(len(w.Messages), func(i int) bool { return w.Messages[i].ID >= msg.ID })
	if i < len(w.Messages) && w.Messages[i].ID == msg.ID {
		return w
	}
	msgs := make([]models.Message, 0, len(w.Messages)+1)
	msgs = append(msgs, w.Messages[:i]...)
	msgs = append(msgs, msg)
	msgs = append(msgs, w.Messages[i:]...)

	if len(msgs) > size {
		msgs = msgs[len(msgs)-size:]
	}
	w.Messages = msgs
	return w
}
