// File: cmd/chat/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"

	"chat-stream-engine/internal/config"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/infra/logging"
	"chat-stream-engine/internal/infra/memstore"
	"chat-stream-engine/internal/infra/tokenizer"
	"chat-stream-engine/internal/usecase"
)

// chat is a terminal client: each line is sent as a message and the reply
// is printed as it streams. Ctrl-C stops a reply; on an idle prompt it exits.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	chatID := flag.String("chat", "default", "chat id from the built-in chat list")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewWithWriter(cfg.Log, true, os.Stderr)

	chats := memstore.NewChats(model.DefaultChats())
	info, err := chats.FindByID(context.Background(), *chatID)
	if err != nil {
		log.Fatalf("chat %q: %v", *chatID, err)
	}
	tabs := memstore.NewChatTabs()
	if err := tabs.AddDefaultTab(context.Background(), info.ID, info.Prompt); err != nil {
		log.Fatalf("tab: %v", err)
	}

	req := usecase.NewChatRequest(*info, tabs, memstore.NewBaseConfigStore(cfg.BaseConfig()),
		tokenizer.NewTiktokenEstimator(cfg.Tokenizer.FallbackEncoding), usecase.WithLogger(logger))

	// Ctrl-C while a reply is in progress is forwarded to the loop below;
	// on the prompt it exits.
	var replying atomic.Bool
	interrupts := make(chan struct{}, 1)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		for range sigc {
			if !replying.Load() {
				fmt.Println()
				os.Exit(0)
			}
			select {
			case interrupts <- struct{}{}:
			default:
			}
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		select {
		case <-interrupts:
		default:
		}
		replying.Store(true)
		p := &printer{tabs: tabs, chatID: info.ID}
		turn, err := req.SendMessage(context.Background(), &usecase.RequestOptions{Message: line}, p.update)
		if err != nil {
			replying.Store(false)
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		waitReply(req, turn, interrupts)
		replying.Store(false)
		switch turn.State() {
		case usecase.TurnFailed:
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", turn.Err())
		case usecase.TurnCancelled:
			fmt.Println(" [stopped]")
		default:
			p.update()
			fmt.Println()
		}
	}
}

func waitReply(req *usecase.ChatRequest, turn *usecase.Turn, interrupts <-chan struct{}) {
	for {
		select {
		case <-turn.Done():
			return
		case <-interrupts:
			req.Cancel()
		}
	}
}

// printer writes the unseen tail of the reply.
type printer struct {
	tabs   *memstore.ChatTabs
	chatID string

	mu      sync.Mutex
	printed int
}

func (p *printer) update() {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs, err := p.tabs.GetTabHistory(context.Background(), p.chatID, 0)
	if err != nil || len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant || len(last.Content) <= p.printed {
		return
	}
	fmt.Print(last.Content[p.printed:])
	p.printed = len(last.Content)
}
