package redis

import (
	"context"
	"encoding/json"
	"time"

	"chat-stream-engine/internal/domain/model"
)

const chatListKey = "chat_info:all"

// ChatInfoCache stores chat definitions as JSON with a TTL.
type ChatInfoCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewChatInfoCache(client RedisClient, ttl time.Duration) *ChatInfoCache {
	return &ChatInfoCache{
		client: client,
		ttl:    ttl,
	}
}

func chatKey(id string) string { return "chat_info:" + id }

func (c *ChatInfoCache) StoreChat(ctx context.Context, info *model.ChatInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, chatKey(info.ID), data, c.ttl)
}

// GetChat returns redis.Nil on a miss.
func (c *ChatInfoCache) GetChat(ctx context.Context, id string) (*model.ChatInfo, error) {
	data, err := c.client.Get(ctx, chatKey(id))
	if err != nil {
		return nil, err
	}
	var info model.ChatInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *ChatInfoCache) StoreList(ctx context.Context, list []*model.ChatInfo) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, chatListKey, data, c.ttl)
}

// GetList returns redis.Nil on a miss.
func (c *ChatInfoCache) GetList(ctx context.Context) ([]*model.ChatInfo, error) {
	data, err := c.client.Get(ctx, chatListKey)
	if err != nil {
		return nil, err
	}
	var list []*model.ChatInfo
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Invalidate drops the chat and the cached list.
func (c *ChatInfoCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, chatKey(id), chatListKey)
}
