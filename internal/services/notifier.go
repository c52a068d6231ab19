package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pms-assistant/internal/models"
)

// UpdatePublisher pushes realtime events to a user's websocket connections.
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// UserUpdatesChannel is the redis pub/sub channel carrying a user's events.
func UserUpdatesChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

// RedisPublisher fans events out through redis so any instance holding the
// user's socket can deliver them.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub. Delivery is best effort.
func (p *RedisPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("type", msg.Type).Msg("failed to encode websocket update")
		return
	}
	if err := p.redis.Publish(ctx, UserUpdatesChannel(userID), string(data)).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("type", msg.Type).Msg("failed to publish websocket update")
	}
}
