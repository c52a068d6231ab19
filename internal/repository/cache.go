package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pms-assistant/internal/metrics"
	"pms-assistant/internal/models"
)

const HistoryCacheTTL = time.Hour

type messageBackend interface {
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
}

// CachedMessageStore keeps each session's message list in redis in front of
// the durable store. Redis errors fall through to the durable store.
type CachedMessageStore struct {
	next  messageBackend
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedMessageStore(next messageBackend, redisClient *redis.Client) *CachedMessageStore {
	return &CachedMessageStore{next: next, redis: redisClient, ttl: HistoryCacheTTL}
}

func HistoryCacheKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("chat:session:%s", sessionID.String())
}

func (c *CachedMessageStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if err := c.next.AppendMessage(ctx, m); err != nil {
		return err
	}
	if err := c.EvictHistory(ctx, m.SessionID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", m.SessionID.String()).Msg("failed to invalidate history cache")
	}
	return nil
}

func (c *CachedMessageStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	key := HistoryCacheKey(sessionID)
	logger := zerolog.Ctx(ctx)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []*models.Message
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		logger.Warn().Str("key", key).Msg("discarding undecodable cached history")
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Str("key", key).Msg("history cache read failed")
	}

	msgs, err := c.next.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(msgs); err == nil {
		if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("history cache write failed")
		}
	}
	return msgs, nil
}

// EvictHistory drops the cached history of a session.
func (c *CachedMessageStore) EvictHistory(ctx context.Context, sessionID uuid.UUID) error {
	return c.redis.Del(ctx, HistoryCacheKey(sessionID)).Err()
}
