package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
)

func conversation(n int) []model.ChatMessage {
	h := []model.ChatMessage{model.SystemMessage("seed prompt")}
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			h = append(h, model.UserMessage(fmt.Sprintf("question %d", i)))
		} else {
			h = append(h, model.AssistantMessage(fmt.Sprintf("answer number %d", i)))
		}
	}
	return h
}

func TestBuildWindow_EmptyHistory(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	w, err := b.BuildWindow(nil, model.UserMessage("hello there"), "be nice", model.ChatSessionConfig{ContextMaxMessageCount: 3, ContextMaxTokens: 100})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	want := []model.ChatMessage{model.SystemMessage("be nice"), model.UserMessage("hello there")}
	if !reflect.DeepEqual(w.Messages, want) {
		t.Fatalf("want %v, got %v", want, w.Messages)
	}
	if w.Tokens != 2 || w.Dropped != 0 {
		t.Fatalf("unexpected tokens=%d dropped=%d", w.Tokens, w.Dropped)
	}
}

func TestBuildWindow_MessageCountLimit(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	w, err := b.BuildWindow(conversation(6), model.UserMessage("latest"), "p", model.ChatSessionConfig{ContextMaxMessageCount: 2, ContextMaxTokens: 1000})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	got := w.History()
	if len(got) != 3 {
		t.Fatalf("want 3 history messages, got %d: %v", len(got), got)
	}
	if got[0].Content != "question 4" || got[1].Content != "answer number 5" || got[2].Content != "latest" {
		t.Fatalf("wrong tail selected: %v", got)
	}
}

func TestBuildWindow_SkipsHistorySystemMessages(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	w, err := b.BuildWindow(conversation(1), model.UserMessage("next"), "fresh prompt", model.ChatSessionConfig{ContextMaxMessageCount: 10, ContextMaxTokens: 1000})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	systems := 0
	for _, m := range w.Messages {
		if m.Role == model.RoleSystem {
			systems++
		}
	}
	if systems != 1 || w.Messages[0].Content != "fresh prompt" {
		t.Fatalf("want only the prepended prompt as system message, got %v", w.Messages)
	}
}

func TestBuildWindow_TrimsOldestToTokenBudget(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	history := []model.ChatMessage{
		model.UserMessage("one two three four"),
		model.AssistantMessage("five six seven"),
		model.UserMessage("eight nine"),
		model.AssistantMessage("ten"),
	}
	w, err := b.BuildWindow(history, model.UserMessage("eleven twelve"), "a very long prompt that is not counted", model.ChatSessionConfig{ContextMaxMessageCount: 10, ContextMaxTokens: 5})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	want := []model.ChatMessage{model.UserMessage("eight nine"), model.AssistantMessage("ten"), model.UserMessage("eleven twelve")}
	if !reflect.DeepEqual(w.History(), want) {
		t.Fatalf("want %v, got %v", want, w.History())
	}
	if w.Tokens != 5 || w.Dropped != 2 {
		t.Fatalf("want tokens=5 dropped=2, got tokens=%d dropped=%d", w.Tokens, w.Dropped)
	}
}

func TestBuildWindow_NeverDropsNewestUserMessage(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	huge := strings.Repeat("word ", 50)
	w, err := b.BuildWindow(conversation(4), model.UserMessage(huge), "p", model.ChatSessionConfig{ContextMaxMessageCount: 4, ContextMaxTokens: 3})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	h := w.History()
	if len(h) != 1 || h[0].Content != huge {
		t.Fatalf("want only the newest user message, got %v", h)
	}
	if w.Tokens != 50 {
		t.Fatalf("want 50 tokens over budget, got %d", w.Tokens)
	}
}

func TestBuildWindow_NegativeCountKeepsNewUserMessage(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	w, err := b.BuildWindow(conversation(3), model.UserMessage("now"), "p", model.ChatSessionConfig{ContextMaxMessageCount: -5, ContextMaxTokens: 100})
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	if h := w.History(); len(h) != 1 || h[0].Content != "now" {
		t.Fatalf("want only the new message, got %v", h)
	}
}

func TestBuildWindow_DeterministicAndInputUntouched(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	history := conversation(8)
	snapshot := model.CloneMessages(history)
	cfg := model.ChatSessionConfig{ContextMaxMessageCount: 5, ContextMaxTokens: 9}

	w1, err := b.BuildWindow(history, model.UserMessage("again please"), "p", cfg)
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	w2, err := b.BuildWindow(history, model.UserMessage("again please"), "p", cfg)
	if err != nil {
		t.Fatalf("BuildWindow: %v", err)
	}
	if !reflect.DeepEqual(w1, w2) {
		t.Fatalf("repeated builds differ:\n%v\n%v", w1, w2)
	}
	if !reflect.DeepEqual(history, snapshot) {
		t.Fatalf("input history was mutated")
	}
	w1.Messages[1].Content = "changed"
	for _, m := range history {
		if m.Content == "changed" {
			t.Fatalf("window aliases the input history")
		}
	}
}

func TestBuildWindow_BoundsHoldAcrossConfigs(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	for n := 0; n <= 9; n++ {
		for count := -1; count <= 6; count++ {
			for budget := 0; budget <= 12; budget += 3 {
				cfg := model.ChatSessionConfig{ContextMaxMessageCount: count, ContextMaxTokens: budget}
				newUser := model.UserMessage("final question")
				w, err := b.BuildWindow(conversation(n), newUser, "p", cfg)
				if err != nil {
					t.Fatalf("n=%d count=%d budget=%d: %v", n, count, budget, err)
				}
				h := w.History()
				if len(h) > max(count+1, 1) {
					t.Fatalf("n=%d count=%d: %d messages exceed limit", n, count, len(h))
				}
				if w.Tokens > budget && len(h) > 1 {
					t.Fatalf("n=%d budget=%d: %d tokens over budget with %d messages", n, budget, w.Tokens, len(h))
				}
				if h[len(h)-1] != newUser {
					t.Fatalf("newest user message missing: %v", h)
				}
				if w.Messages[0].Role != model.RoleSystem {
					t.Fatalf("prompt must come first")
				}
			}
		}
	}
}

func TestBuildWindow_UnsupportedModel(t *testing.T) {
	b := NewContextBuilder(wordEstimator{})
	_, err := b.BuildWindow(nil, model.UserMessage("x"), "p", model.ChatSessionConfig{Model: "mystery-1", ContextMaxTokens: 10})
	var ume *domain.UnsupportedModelError
	if !errors.As(err, &ume) || ume.Model != "mystery-1" {
		t.Fatalf("want UnsupportedModelError, got %v", err)
	}
}
