//go:build !integration

package postgres

import (
	"context"
	"time"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	red "chat-stream-engine/internal/infra/redis"

	"github.com/go-redis/redis/v8"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerChatInfoRepo mocks the database repository the decorator wraps.
type mockInnerChatInfoRepo struct {
	chats     map[string]*model.ChatInfo
	findCalls int
	listCalls int
	saved     []*model.ChatInfo
}

func (m *mockInnerChatInfoRepo) FindByID(ctx context.Context, id string) (*model.ChatInfo, error) {
	m.findCalls++
	info, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return info, nil
}

func (m *mockInnerChatInfoRepo) List(ctx context.Context) ([]*model.ChatInfo, error) {
	m.listCalls++
	out := make([]*model.ChatInfo, 0, len(m.chats))
	for _, c := range m.chats {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockInnerChatInfoRepo) Save(ctx context.Context, info *model.ChatInfo) error {
	m.saved = append(m.saved, info)
	m.chats[info.ID] = info
	return nil
}

// mockRedisClient is a map-backed key/value store; list commands are unused here.
type mockRedisClient struct {
	kv      map[string]string
	deleted []string
}

var _ red.RedisClient = &mockRedisClient{}

func newMockRedisClient() *mockRedisClient { return &mockRedisClient{kv: map[string]string{}} }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.kv[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.kv[key] = string(v)
	case string:
		m.kv[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.kv, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }

func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (m *mockRedisClient) Exists(ctx context.Context, keys ...string) (int64, error) { return 0, nil }

func (m *mockRedisClient) RPush(ctx context.Context, key string, values ...interface{}) error {
	return nil
}
func (m *mockRedisClient) LIndex(ctx context.Context, key string, index int64) (string, error) {
	return "", redis.Nil
}
func (m *mockRedisClient) LSet(ctx context.Context, key string, index int64, value interface{}) error {
	return nil
}
func (m *mockRedisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return nil, nil
}

func (m *mockRedisClient) Close() error { return nil }
