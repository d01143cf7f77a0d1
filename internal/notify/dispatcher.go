// Package notify hands mention events to whatever delivers them live.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lalith-99/echothread/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDispatcher publishes every mention event as JSON on one pub/sub
// channel. Subscribers (push gateways, email digests) live elsewhere.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisDispatcher(client *redis.Client, channel string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, channel: channel, logger: logger}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, event models.MentionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode mention event: %w", err)
	}
	receivers, err := d.client.Publish(ctx, d.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish mention event: %w", err)
	}
	d.logger.Debug("mention published",
		zap.String("channel", d.channel),
		zap.Int64("message_id", event.MessageID),
		zap.String("mentioned_user_id", event.MentionedUserID.String()),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// LogDispatcher only logs. It is used when Redis is not configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event models.MentionEvent) error {
	d.logger.Info("mention",
		zap.String("tenant_id", event.TenantID.String()),
		zap.Int64("message_id", event.MessageID),
		zap.String("conversation", event.Conversation.String()),
		zap.String("mentioned_user_id", event.MentionedUserID.String()),
	)
	return nil
}
