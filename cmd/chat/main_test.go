package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/infra/memstore"
	"chat-stream-engine/internal/usecase"
)

type words struct{}

func (words) Estimate(_, text string) (int, error) { return len(strings.Fields(text)), nil }

func (w words) EstimateAll(m string, texts []string) ([]int, error) {
	out := make([]int, len(texts))
	for i, s := range texts {
		out[i], _ = w.Estimate(m, s)
	}
	return out, nil
}

func TestWaitReply_InterruptBeforeTurnIsLiveStillCancels(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer upstream.Close()

	chat := model.DefaultChats()[0]
	tabs := memstore.NewChatTabs()
	if err := tabs.AddDefaultTab(context.Background(), chat.ID, chat.Prompt); err != nil {
		t.Fatal(err)
	}
	configs := memstore.NewBaseConfigStore(model.BaseConfig{
		APIKey:            "k",
		APIURL:            upstream.URL,
		Model:             "gpt-3.5-turbo",
		ContextMaxMessage: 1,
		ContextMaxTokens:  100,
	})
	req := usecase.NewChatRequest(chat, tabs, configs, words{}, usecase.WithHTTPClient(upstream.Client()))

	// Ctrl-C lands while SendMessage is still running.
	interrupts := make(chan struct{}, 1)
	interrupts <- struct{}{}

	turn, err := req.SendMessage(context.Background(), &usecase.RequestOptions{Message: "hi"}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	done := make(chan struct{})
	go func() { waitReply(req, turn, interrupts); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waitReply did not return after an interrupt")
	}
	if turn.State() != usecase.TurnCancelled {
		t.Fatalf("want cancelled, got %s", turn.State())
	}
	if req.Current() != nil {
		t.Fatal("no turn should be live after cancel")
	}
}
