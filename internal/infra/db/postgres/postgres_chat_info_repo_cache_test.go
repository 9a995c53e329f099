//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	red "chat-stream-engine/internal/infra/redis"

	"github.com/rs/zerolog"
)

func newDecorator() (*mockInnerChatInfoRepo, *mockRedisClient, *chatInfoRepoCacheDecorator) {
	chats := model.DefaultChats()
	inner := &mockInnerChatInfoRepo{chats: map[string]*model.ChatInfo{"default": &chats[0]}}
	rc := newMockRedisClient()
	log := zerolog.Nop()
	d := NewChatInfoRepoCacheDecorator(inner, red.NewChatInfoCache(rc, time.Hour), &log)
	return inner, rc, d.(*chatInfoRepoCacheDecorator)
}

func TestChatInfoRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()

	t.Run("FindByID should hit the cache on the second call", func(t *testing.T) {
		inner, _, d := newDecorator()
		for i := 0; i < 2; i++ {
			info, err := d.FindByID(ctx, "default")
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if info.Name != "Default Chat" {
				t.Fatalf("unexpected chat %+v", info)
			}
			if _, ok := info.Options.(*model.GPTChatOptions); !ok {
				t.Fatalf("options lost their type: %T", info.Options)
			}
		}
		if inner.findCalls != 1 {
			t.Errorf("inner repository should be called once, got %d", inner.findCalls)
		}
	})

	t.Run("FindByID should pass through not found", func(t *testing.T) {
		_, _, d := newDecorator()
		if _, err := d.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("Save should invalidate the chat and the list", func(t *testing.T) {
		inner, rc, d := newDecorator()
		if _, err := d.List(ctx); err != nil {
			t.Fatalf("List: %v", err)
		}
		if _, err := d.List(ctx); err != nil {
			t.Fatalf("List: %v", err)
		}
		if inner.listCalls != 1 {
			t.Fatalf("second List should be served from cache")
		}

		updated := &model.ChatInfo{ID: "default", Name: "Renamed", ChatType: model.ChatTypeChatGPT, Options: &model.GPTChatOptions{}}
		if err := d.Save(ctx, updated); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if len(rc.deleted) != 2 || rc.deleted[0] != "chat_info:default" || rc.deleted[1] != "chat_info:all" {
			t.Errorf("unexpected invalidated keys %v", rc.deleted)
		}
		info, _ := d.FindByID(ctx, "default")
		if info.Name != "Renamed" {
			t.Errorf("stale chat after save: %+v", info)
		}
	})
}
