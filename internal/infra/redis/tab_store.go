package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"
)

var _ repository.TabStore = (*TabStore)(nil)

// TabStore keeps each tab as a list of JSON encoded messages. The first
// element is the system prompt, so an existing tab is never empty.
type TabStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewTabStore(client RedisClient, ttl time.Duration) *TabStore {
	return &TabStore{client: client, ttl: ttl}
}

func messagesKey(chatID string, tabIndex int) string {
	return fmt.Sprintf("chat_tab:%s:%d:messages", chatID, tabIndex)
}

func generatingKey(chatID string, tabIndex int) string {
	return fmt.Sprintf("chat_tab:%s:%d:generating", chatID, tabIndex)
}

func (s *TabStore) EnsureTab(ctx context.Context, chatID string, tabIndex int, prompt string) error {
	if tabIndex < 0 {
		return domain.InvalidArgument("tab index is negative")
	}
	key := messagesKey(chatID, tabIndex)
	n, err := s.client.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check tab %d: %w", tabIndex, err)
	}
	if n > 0 {
		return nil
	}
	if tabIndex > 0 {
		// only the next tab may be opened
		if err := s.exists(ctx, chatID, tabIndex-1); err != nil {
			return err
		}
	}
	return s.push(ctx, key, model.SystemMessage(prompt))
}

func (s *TabStore) AddUserMessage(ctx context.Context, chatID string, tabIndex int, content string) error {
	return s.appendMessage(ctx, chatID, tabIndex, model.UserMessage(content))
}

func (s *TabStore) AddAssistantPlaceholder(ctx context.Context, chatID string, tabIndex int) error {
	return s.appendMessage(ctx, chatID, tabIndex, model.AssistantMessage(""))
}

func (s *TabStore) AppendAssistantContent(ctx context.Context, chatID string, tabIndex int, delta string) error {
	return s.updateLast(ctx, chatID, tabIndex, func(m *model.ChatMessage) error {
		if m.Role != model.RoleAssistant {
			return fmt.Errorf("tab %s/%d: no assistant message to append to", chatID, tabIndex)
		}
		m.Content += delta
		return nil
	})
}

// SetAssistantError replaces the in-progress assistant content with message.
func (s *TabStore) SetAssistantError(ctx context.Context, chatID string, tabIndex int, message string) error {
	err := s.updateLast(ctx, chatID, tabIndex, func(m *model.ChatMessage) error {
		if m.Role != model.RoleAssistant {
			return errNotAssistant
		}
		m.Content = message
		return nil
	})
	if errors.Is(err, errNotAssistant) {
		return s.appendMessage(ctx, chatID, tabIndex, model.AssistantMessage(message))
	}
	return err
}

func (s *TabStore) SetGenerating(ctx context.Context, chatID string, tabIndex int, generating bool) error {
	key := generatingKey(chatID, tabIndex)
	if generating {
		return s.client.Set(ctx, key, "1", s.ttl)
	}
	return s.client.Del(ctx, key)
}

func (s *TabStore) IsGenerating(ctx context.Context, chatID string, tabIndex int) (bool, error) {
	if err := s.exists(ctx, chatID, tabIndex); err != nil {
		return false, err
	}
	_, err := s.client.Get(ctx, generatingKey(chatID, tabIndex))
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *TabStore) GetTabHistory(ctx context.Context, chatID string, tabIndex int) ([]model.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, messagesKey(chatID, tabIndex), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read tab %s/%d: %w", chatID, tabIndex, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("tab %s/%d: %w", chatID, tabIndex, domain.ErrNotFound)
	}
	out := make([]model.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

var errNotAssistant = errors.New("last message is not an assistant message")

func (s *TabStore) appendMessage(ctx context.Context, chatID string, tabIndex int, m model.ChatMessage) error {
	if err := s.exists(ctx, chatID, tabIndex); err != nil {
		return err
	}
	return s.push(ctx, messagesKey(chatID, tabIndex), m)
}

func (s *TabStore) push(ctx context.Context, key string, m model.ChatMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, key, data); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl)
}

// updateLast rewrites the last message of a tab. Only one turn writes a tab
// at a time, so read-modify-write needs no transaction.
func (s *TabStore) updateLast(ctx context.Context, chatID string, tabIndex int, fn func(*model.ChatMessage) error) error {
	key := messagesKey(chatID, tabIndex)
	raw, err := s.client.LIndex(ctx, key, -1)
	if err == redis.Nil {
		return fmt.Errorf("tab %s/%d: %w", chatID, tabIndex, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	var m model.ChatMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := fn(&m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.client.LSet(ctx, key, -1, data)
}

func (s *TabStore) exists(ctx context.Context, chatID string, tabIndex int) error {
	n, err := s.client.Exists(ctx, messagesKey(chatID, tabIndex))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tab %s/%d: %w", chatID, tabIndex, domain.ErrNotFound)
	}
	return nil
}
