// Package redis 提供 Redis 会话存储实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"news-chat-api/internal/domain/entity"
)

const sessionKeyPrefix = "chat:session:"

// SessionStore 仅追加、带 TTL 的会话日志。
// 过期完全委托给 Redis 的原生 TTL，进程内不做任何清理。
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

// NewSessionStore 创建会话存储
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Append 追加一条记录并立即刷新 TTL。
// RPUSH 保证读回顺序与写入顺序一致；TTL 刷新使空闲会话自然消失。
func (s *SessionStore) Append(ctx context.Context, sessionID string, turn entity.Turn) error {
	ctx, span := tracer.Start(ctx, "session.Append",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	payload, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := sessionKey(sessionID)
	if err := s.client.rdb.RPush(ctx, key, payload).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return s.RefreshTTL(ctx, sessionID)
}

// RefreshTTL 重置会话的过期时间
func (s *SessionStore) RefreshTTL(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "session.RefreshTTL",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Int64("ttl_ms", s.ttl.Milliseconds()),
		))
	defer span.End()

	if err := s.client.rdb.Expire(ctx, sessionKey(sessionID), s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to refresh ttl: %w", err)
	}
	return nil
}

// History 按写入顺序读取会话全部记录；不存在的会话返回空切片
func (s *SessionStore) History(ctx context.Context, sessionID string) ([]entity.Turn, error) {
	ctx, span := tracer.Start(ctx, "session.History",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	raw, err := s.client.rdb.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	turns := make([]entity.Turn, 0, len(raw))
	for _, item := range raw {
		var t entity.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, t)
	}

	span.SetAttributes(attribute.Int("turn_count", len(turns)))
	return turns, nil
}

// Clear 删除会话
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "session.Clear",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	if err := s.client.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
