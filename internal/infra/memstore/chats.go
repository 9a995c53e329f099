package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"
)

var (
	_ repository.ChatInfoRepository = (*Chats)(nil)
	_ repository.ConfigProvider     = (*BaseConfigStore)(nil)
)

// Chats is an ordered in-memory chat list.
type Chats struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]model.ChatInfo
}

// NewChats seeds the list with the given chats, usually model.DefaultChats().
func NewChats(seed []model.ChatInfo) *Chats {
	c := &Chats{byID: make(map[string]model.ChatInfo, len(seed))}
	for _, info := range seed {
		c.put(info)
	}
	return c
}

// AddChat creates a chat with a generated id.
func (c *Chats) AddChat(ctx context.Context, name, prompt string, opts model.ChatOptions) (*model.ChatInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.InvalidArgument("chat name is empty")
	}
	info := &model.ChatInfo{
		ID:       uuid.NewString(),
		Name:     name,
		Prompt:   prompt,
		ChatType: model.ChatTypeChatGPT,
		Options:  opts,
	}
	if err := c.Save(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Chats) FindByID(_ context.Context, id string) (*model.ChatInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &info, nil
}

func (c *Chats) List(_ context.Context) ([]*model.ChatInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.ChatInfo, 0, len(c.order))
	for _, id := range c.order {
		info := c.byID[id]
		out = append(out, &info)
	}
	return out, nil
}

// Save inserts or replaces a chat by id.
func (c *Chats) Save(_ context.Context, info *model.ChatInfo) error {
	if info == nil || info.ID == "" {
		return domain.InvalidArgument("chat id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(*info)
	return nil
}

func (c *Chats) put(info model.ChatInfo) {
	if _, ok := c.byID[info.ID]; !ok {
		c.order = append(c.order, info.ID)
	}
	c.byID[info.ID] = info
}

// BaseConfigStore serves a fixed base config that can be swapped at runtime.
type BaseConfigStore struct {
	mu  sync.RWMutex
	cfg model.BaseConfig
}

func NewBaseConfigStore(cfg model.BaseConfig) *BaseConfigStore {
	return &BaseConfigStore{cfg: cfg}
}

func (s *BaseConfigStore) BaseConfig(context.Context) (model.BaseConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

func (s *BaseConfigStore) Set(cfg model.BaseConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}
