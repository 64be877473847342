package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-chat-api/internal/config"
	"news-chat-api/internal/domain/entity"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)

	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	client, err := NewClient(&config.RedisConfig{Host: srv.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionStore(client, ttl), srv
}

func TestAppend_SetsTTLOnFirstWrite(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)

	require.NoError(t, store.Append(context.Background(), "s1", entity.UserTurn("question")))

	assert.Equal(t, time.Hour, srv.TTL("chat:session:s1"))
}

func TestAppend_RefreshesTTLOnEveryWrite(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)
	ctx := context.Background()
	key := "chat:session:s1"

	require.NoError(t, store.Append(ctx, "s1", entity.UserTurn("question")))

	// 闲置 30 分钟后 TTL 减半
	srv.FastForward(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, srv.TTL(key))

	// 任意一次追加都把 TTL 重置为满额
	require.NoError(t, store.Append(ctx, "s1", entity.BotTurn("answer")))
	assert.Equal(t, time.Hour, srv.TTL(key))
}

func TestAppend_ExpiresAfterIdleTTL(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", entity.UserTurn("question")))
	srv.FastForward(time.Hour + time.Minute)

	// 过期完全由 Redis TTL 负责，读取方看到的是空会话
	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestHistory_ReturnsTurnsInWriteOrder(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", entity.UserTurn("first question")))
	require.NoError(t, store.Append(ctx, "s1", entity.BotTurn("first answer")))
	require.NoError(t, store.Append(ctx, "s1", entity.UserTurn("second question")))

	turns, err := store.History(ctx, "s1")

	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "first question", turns[0].User)
	assert.Equal(t, "first answer", turns[1].Bot)
	assert.Equal(t, "second question", turns[2].User)
}

func TestHistory_MissingSessionIsEmpty(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	turns, err := store.History(context.Background(), "never-written")

	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestClear_DeletesKey(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", entity.UserTurn("question")))
	require.NoError(t, store.Clear(ctx, "s1"))

	assert.False(t, srv.Exists("chat:session:s1"))
}

func TestNewSessionStore_DefaultTTL(t *testing.T) {
	store, srv := newTestStore(t, 0)

	require.NoError(t, store.Append(context.Background(), "s1", entity.UserTurn("q")))

	// 非法 TTL 回落到一小时
	assert.Equal(t, time.Hour, srv.TTL("chat:session:s1"))
}
