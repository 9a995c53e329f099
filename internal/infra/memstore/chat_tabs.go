// Package memstore keeps chats, tabs and the base config in process memory.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"
)

var _ repository.TabStore = (*ChatTabs)(nil)

type tab struct {
	messages   []model.ChatMessage
	generating bool
}

// ChatTabs holds the tabs of every chat. Each tab starts with the chat's
// system prompt message.
type ChatTabs struct {
	mu   sync.RWMutex
	tabs map[string][]*tab
}

func NewChatTabs() *ChatTabs {
	return &ChatTabs{tabs: make(map[string][]*tab)}
}

// AddTab appends a new tab to the chat and returns its index.
func (s *ChatTabs) AddTab(_ context.Context, chatID, prompt string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[chatID] = append(s.tabs[chatID], newTab(prompt))
	return len(s.tabs[chatID]) - 1
}

// AddDefaultTab makes sure the chat has its first tab.
func (s *ChatTabs) AddDefaultTab(ctx context.Context, chatID, prompt string) error {
	return s.EnsureTab(ctx, chatID, 0, prompt)
}

func (s *ChatTabs) EnsureTab(_ context.Context, chatID string, tabIndex int, prompt string) error {
	if tabIndex < 0 {
		return domain.InvalidArgument("tab index is negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tabs[chatID])
	switch {
	case tabIndex < n:
		return nil
	case tabIndex == n:
		s.tabs[chatID] = append(s.tabs[chatID], newTab(prompt))
		return nil
	default:
		return fmt.Errorf("tab %s/%d: only the next tab (%d) can be opened: %w", chatID, tabIndex, n, domain.ErrNotFound)
	}
}

// TabCount returns the number of tabs of a chat.
func (s *ChatTabs) TabCount(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs[chatID])
}

func (s *ChatTabs) AddUserMessage(_ context.Context, chatID string, tabIndex int, content string) error {
	return s.update(chatID, tabIndex, func(t *tab) error {
		t.messages = append(t.messages, model.UserMessage(content))
		return nil
	})
}

func (s *ChatTabs) AddAssistantPlaceholder(_ context.Context, chatID string, tabIndex int) error {
	return s.update(chatID, tabIndex, func(t *tab) error {
		t.messages = append(t.messages, model.AssistantMessage(""))
		return nil
	})
}

func (s *ChatTabs) AppendAssistantContent(_ context.Context, chatID string, tabIndex int, delta string) error {
	return s.update(chatID, tabIndex, func(t *tab) error {
		last := lastAssistant(t)
		if last == nil {
			return fmt.Errorf("tab %s/%d: no assistant message to append to", chatID, tabIndex)
		}
		last.Content += delta
		return nil
	})
}

// SetAssistantError replaces the in-progress assistant content with message.
func (s *ChatTabs) SetAssistantError(_ context.Context, chatID string, tabIndex int, message string) error {
	return s.update(chatID, tabIndex, func(t *tab) error {
		if last := lastAssistant(t); last != nil {
			last.Content = message
			return nil
		}
		t.messages = append(t.messages, model.AssistantMessage(message))
		return nil
	})
}

func (s *ChatTabs) SetGenerating(_ context.Context, chatID string, tabIndex int, generating bool) error {
	return s.update(chatID, tabIndex, func(t *tab) error {
		t.generating = generating
		return nil
	})
}

func (s *ChatTabs) GetTabHistory(_ context.Context, chatID string, tabIndex int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(chatID, tabIndex)
	if err != nil {
		return nil, err
	}
	return model.CloneMessages(t.messages), nil
}

func (s *ChatTabs) IsGenerating(_ context.Context, chatID string, tabIndex int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(chatID, tabIndex)
	if err != nil {
		return false, err
	}
	return t.generating, nil
}

func (s *ChatTabs) update(chatID string, tabIndex int, fn func(*tab) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(chatID, tabIndex)
	if err != nil {
		return err
	}
	return fn(t)
}

func (s *ChatTabs) lookup(chatID string, tabIndex int) (*tab, error) {
	tabs := s.tabs[chatID]
	if tabIndex < 0 || tabIndex >= len(tabs) {
		return nil, fmt.Errorf("tab %s/%d: %w", chatID, tabIndex, domain.ErrNotFound)
	}
	return tabs[tabIndex], nil
}

func newTab(prompt string) *tab {
	return &tab{messages: []model.ChatMessage{model.SystemMessage(prompt)}}
}

func lastAssistant(t *tab) *model.ChatMessage {
	if n := len(t.messages); n > 0 && t.messages[n-1].Role == model.RoleAssistant {
		return &t.messages[n-1]
	}
	return nil
}
