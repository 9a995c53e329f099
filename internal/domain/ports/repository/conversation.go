package repository

import (
	"context"

	"chat-stream-engine/internal/domain/model"
)

// -----------------------------
// Conversation state
// -----------------------------

// ConversationStateSink is the mutation surface a turn writes through.
// Implementations are owned by the UI/state layer; a tab is mutated by at
// most one turn at a time.
type ConversationStateSink interface {
	AddUserMessage(ctx context.Context, chatID string, tabIndex int, content string) error
	AddAssistantPlaceholder(ctx context.Context, chatID string, tabIndex int) error
	AppendAssistantContent(ctx context.Context, chatID string, tabIndex int, delta string) error
	SetAssistantError(ctx context.Context, chatID string, tabIndex int, message string) error
	SetGenerating(ctx context.Context, chatID string, tabIndex int, generating bool) error
	GetTabHistory(ctx context.Context, chatID string, tabIndex int) ([]model.ChatMessage, error)
}

// TabReader is the read side used by callers that render a tab.
type TabReader interface {
	GetTabHistory(ctx context.Context, chatID string, tabIndex int) ([]model.ChatMessage, error)
	IsGenerating(ctx context.Context, chatID string, tabIndex int) (bool, error)
}

// TabStore is a sink that can also be read and seeded with tabs.
type TabStore interface {
	ConversationStateSink
	TabReader
	// EnsureTab creates the tab seeded with the system prompt if it does not
	// exist. Only the next index can be created; skipping ahead fails with
	// domain.ErrNotFound.
	EnsureTab(ctx context.Context, chatID string, tabIndex int, prompt string) error
}
