// File: internal/usecase/turn_service.go
package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/adapter"
	"chat-stream-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ TurnUseCase = (*turnService)(nil)

type TurnUseCase interface {
	Chats(ctx context.Context) ([]*model.ChatInfo, error)
	Send(ctx context.Context, chatID string, tabIndex int, message string, onUpdate func()) (*Turn, error)
	Cancel(ctx context.Context, chatID string, tabIndex int) error
	History(ctx context.Context, chatID string, tabIndex int) (*TabSnapshot, error)
}

// TabSnapshot is a point-in-time read of a tab.
type TabSnapshot struct {
	ChatID     string              `json:"chatId"`
	TabIndex   int                 `json:"tabIndex"`
	Messages   []model.ChatMessage `json:"messages"`
	Generating bool                `json:"generating"`
}

type tabKey struct {
	chatID string
	tab    int
}

type turnService struct {
	chats   repository.ChatInfoRepository
	tabs    repository.TabStore
	configs repository.ConfigProvider
	tokens  adapter.TokenEstimator
	opts    []Option
	log     *zerolog.Logger

	mu       sync.Mutex
	requests map[tabKey]*ChatRequest
}

// NewTurnService keeps one ChatRequest per (chat, tab) so each tab has at
// most one live turn. opts are passed to every ChatRequest it creates.
func NewTurnService(chats repository.ChatInfoRepository, tabs repository.TabStore, configs repository.ConfigProvider, tokens adapter.TokenEstimator, log *zerolog.Logger, opts ...Option) *turnService {
	return &turnService{
		chats:    chats,
		tabs:     tabs,
		configs:  configs,
		tokens:   tokens,
		opts:     append([]Option{WithLogger(log)}, opts...),
		log:      log,
		requests: make(map[tabKey]*ChatRequest),
	}
}

func (s *turnService) Chats(ctx context.Context) ([]*model.ChatInfo, error) {
	return s.chats.List(ctx)
}

// Send validates the input before the tab is touched, then opens the tab if
// it is the next one and starts a turn on it.
func (s *turnService) Send(ctx context.Context, chatID string, tabIndex int, message string, onUpdate func()) (*Turn, error) {
	opts := &RequestOptions{TabIndex: tabIndex, Message: message}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	info, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("find chat %s: %w", chatID, err)
	}
	if err := s.tabs.EnsureTab(ctx, chatID, tabIndex, info.Prompt); err != nil {
		return nil, err
	}
	return s.request(*info, tabIndex).SendMessage(ctx, opts, onUpdate)
}

// Cancel stops the tab's live turn, if any.
func (s *turnService) Cancel(_ context.Context, chatID string, tabIndex int) error {
	s.mu.Lock()
	cr := s.requests[tabKey{chatID, tabIndex}]
	s.mu.Unlock()
	if cr != nil {
		cr.Cancel()
	}
	return nil
}

func (s *turnService) History(ctx context.Context, chatID string, tabIndex int) (*TabSnapshot, error) {
	msgs, err := s.tabs.GetTabHistory(ctx, chatID, tabIndex)
	if err != nil {
		return nil, err
	}
	generating, err := s.tabs.IsGenerating(ctx, chatID, tabIndex)
	if err != nil {
		return nil, err
	}
	return &TabSnapshot{ChatID: chatID, TabIndex: tabIndex, Messages: msgs, Generating: generating}, nil
}

func (s *turnService) request(info model.ChatInfo, tabIndex int) *ChatRequest {
	key := tabKey{info.ID, tabIndex}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cr, ok := s.requests[key]; ok {
		cr.SetChat(info)
		return cr
	}
	cr := NewChatRequest(info, s.tabs, s.configs, s.tokens, s.opts...)
	s.requests[key] = cr
	return cr
}
