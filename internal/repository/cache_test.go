package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pms-assistant/internal/models"
)

// countingBackend counts reads that reach the durable store.
type countingBackend struct {
	*MemoryStore
	lists int
}

func (b *countingBackend) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	b.lists++
	return b.MemoryStore.ListMessages(ctx, sessionID)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCachedMessageStore(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	backend := &countingBackend{MemoryStore: NewMemoryStore()}
	store := NewCachedMessageStore(backend, client)

	sessionID := uuid.New()
	t.Cleanup(func() { client.Del(context.Background(), HistoryCacheKey(sessionID)) })

	require.NoError(t, store.AppendMessage(ctx, &models.Message{SessionID: sessionID, Role: models.RoleUser, Content: "hi"}))

	first, err := store.ListMessages(ctx, sessionID)
	require.NoError(t, err)
	second, err := store.ListMessages(ctx, sessionID)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.lists)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "hi", second[0].Content)

	ttl, err := client.TTL(ctx, HistoryCacheKey(sessionID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)

	require.NoError(t, store.AppendMessage(ctx, &models.Message{SessionID: sessionID, Role: models.RoleAssistant, Content: "hello"}))
	msgs, err := store.ListMessages(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, backend.lists)

	require.NoError(t, store.EvictHistory(ctx, sessionID))
	exists, err := client.Exists(ctx, HistoryCacheKey(sessionID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestHistoryCacheKey(t *testing.T) {
	id := uuid.MustParse("7f1c6a2e-8d2b-4c11-9a55-0b8c3e7d9f10")
	assert.Equal(t, "chat:session:7f1c6a2e-8d2b-4c11-9a55-0b8c3e7d9f10", HistoryCacheKey(id))
}
