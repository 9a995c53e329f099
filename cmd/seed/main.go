package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"chat-stream-engine/internal/config"
	"chat-stream-engine/internal/domain/model"
	pg "chat-stream-engine/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatalf("database.url is required for seeding")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pg.NewPostgresChatInfoRepo(pool)

	// If chats already exist, do nothing
	chats, err := repo.List(ctx)
	if err != nil {
		log.Fatalf("list chats: %v", err)
	}
	if len(chats) > 0 {
		fmt.Printf("%d chats already present. No changes.\n", len(chats))
		for _, c := range chats {
			fmt.Printf("  - %s (id=%s, type=%s)\n", c.Name, c.ID, c.ChatType)
		}
		return
	}

	for _, c := range model.DefaultChats() {
		c := c
		if err := repo.Save(ctx, &c); err != nil {
			log.Fatalf("save chat %q: %v", c.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, type=%s)\n", c.Name, c.ID, c.ChatType)
	}

	fmt.Println("Seeding complete.")
}
