package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/infra/memstore"
)

func newLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// wordEstimator counts whitespace separated words. Models starting with
// "mystery" are unknown.
type wordEstimator struct{}

func (wordEstimator) Estimate(m, text string) (int, error) {
	if strings.HasPrefix(m, "mystery") {
		return 0, &domain.UnsupportedModelError{Model: m}
	}
	return len(strings.Fields(text)), nil
}

func (e wordEstimator) EstimateAll(m string, texts []string) ([]int, error) {
	out := make([]int, len(texts))
	for i, s := range texts {
		n, err := e.Estimate(m, s)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// recordingSink wraps the in-memory tab store and records every call.
type recordingSink struct {
	*memstore.ChatTabs

	mu      sync.Mutex
	calls   []string
	appends chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ChatTabs: memstore.NewChatTabs(), appends: make(chan string, 64)}
}

func (r *recordingSink) record(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordingSink) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingSink) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recordingSink) AddUserMessage(ctx context.Context, chatID string, tabIndex int, content string) error {
	r.record("user:%s", content)
	return r.ChatTabs.AddUserMessage(ctx, chatID, tabIndex, content)
}

func (r *recordingSink) AddAssistantPlaceholder(ctx context.Context, chatID string, tabIndex int) error {
	r.record("placeholder")
	return r.ChatTabs.AddAssistantPlaceholder(ctx, chatID, tabIndex)
}

func (r *recordingSink) AppendAssistantContent(ctx context.Context, chatID string, tabIndex int, delta string) error {
	r.record("append:%s", delta)
	err := r.ChatTabs.AppendAssistantContent(ctx, chatID, tabIndex, delta)
	select {
	case r.appends <- delta:
	default:
	}
	return err
}

func (r *recordingSink) SetAssistantError(ctx context.Context, chatID string, tabIndex int, message string) error {
	r.record("error")
	return r.ChatTabs.SetAssistantError(ctx, chatID, tabIndex, message)
}

func (r *recordingSink) SetGenerating(ctx context.Context, chatID string, tabIndex int, generating bool) error {
	r.record("generating:%t", generating)
	return r.ChatTabs.SetGenerating(ctx, chatID, tabIndex, generating)
}

func (r *recordingSink) GetTabHistory(ctx context.Context, chatID string, tabIndex int) ([]model.ChatMessage, error) {
	r.record("history")
	return r.ChatTabs.GetTabHistory(ctx, chatID, tabIndex)
}

// lastContent returns the content of the tab's last message.
func (r *recordingSink) lastContent(chatID string, tabIndex int) string {
	h, err := r.ChatTabs.GetTabHistory(context.Background(), chatID, tabIndex)
	if err != nil || len(h) == 0 {
		return ""
	}
	return h[len(h)-1].Content
}
