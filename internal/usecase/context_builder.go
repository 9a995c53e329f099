// File: internal/usecase/context_builder.go
package usecase

import (
	"fmt"

	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/adapter"
)

// ConversationWindow is the message list sent as model input. Messages[0]
// is always the system prompt.
type ConversationWindow struct {
	Messages []model.ChatMessage
	// Tokens is the estimated size of the history part, prompt excluded.
	Tokens int
	// Dropped counts history messages removed to fit the token budget.
	Dropped int
}

// History returns the window without the prepended prompt.
func (w ConversationWindow) History() []model.ChatMessage {
	if len(w.Messages) == 0 {
		return nil
	}
	return w.Messages[1:]
}

type ContextBuilder struct {
	tokens adapter.TokenEstimator
}

func NewContextBuilder(tokens adapter.TokenEstimator) *ContextBuilder {
	return &ContextBuilder{tokens: tokens}
}

// BuildWindow selects the context for a new user message. history is the
// tab's messages before newUser; neither input is modified.
func (b *ContextBuilder) BuildWindow(history []model.ChatMessage, newUser model.ChatMessage, prompt string, cfg model.ChatSessionConfig) (ConversationWindow, error) {
	all := make([]model.ChatMessage, 0, len(history)+1)
	all = append(all, history...)
	all = append(all, newUser)

	// contextMaxMessage counts prior messages; +1 is the new user message.
	maxCount := cfg.ContextMaxMessageCount + 1
	if maxCount < 1 {
		maxCount = 1
	}
	start := len(all) - maxCount
	if start < 0 {
		start = 0
	}
	window := make([]model.ChatMessage, 0, len(all)-start)
	for _, m := range all[start:] {
		if m.Role == model.RoleSystem {
			continue
		}
		window = append(window, m)
	}

	texts := make([]string, len(window))
	for i, m := range window {
		texts[i] = m.Content
	}
	counts, err := b.tokens.EstimateAll(cfg.Model, texts)
	if err != nil {
		return ConversationWindow{}, fmt.Errorf("estimate context tokens: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}

	dropped := 0
	for total > cfg.ContextMaxTokens && len(window) > 1 {
		total -= counts[0]
		window = window[1:]
		counts = counts[1:]
		dropped++
	}

	msgs := make([]model.ChatMessage, 0, len(window)+1)
	msgs = append(msgs, model.SystemMessage(prompt))
	msgs = append(msgs, window...)
	return ConversationWindow{Messages: msgs, Tokens: total, Dropped: dropped}, nil
}
