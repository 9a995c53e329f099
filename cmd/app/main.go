// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-stream-engine/internal/config"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"
	"chat-stream-engine/internal/infra/api"
	pg "chat-stream-engine/internal/infra/db/postgres"
	"chat-stream-engine/internal/infra/logging"
	"chat-stream-engine/internal/infra/memstore"
	"chat-stream-engine/internal/infra/metrics"
	red "chat-stream-engine/internal/infra/redis"
	"chat-stream-engine/internal/infra/scheduler"
	"chat-stream-engine/internal/infra/tokenizer"
	"chat-stream-engine/internal/infra/worker"
	"chat-stream-engine/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logs and unredacted secrets")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().
		Str("version", version).
		Str("api_url", cfg.AI.APIURL).
		Str("api_key", logging.Redact(cfg.AI.APIKey, cfg.Runtime.Dev)).
		Msg("starting chat-stream-engine")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Chats: postgres when configured, otherwise the built-in defaults ----
	var chats repository.ChatInfoRepository = memstore.NewChats(model.DefaultChats())
	var tabs repository.TabStore = memstore.NewChatTabs()
	var limiter api.SendLimiter

	var redisClient red.RedisClient
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		redisClient = rc
		tabs = red.NewTabStore(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
	}

	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		chats = pg.NewPostgresChatInfoRepo(pool)
		if redisClient != nil {
			chats = pg.NewChatInfoRepoCacheDecorator(chats, red.NewChatInfoCache(redisClient, cfg.Redis.TTL), logger)
		}
	}

	// ---- Turns ----
	pool := worker.NewPool(cfg.Workers.Size, logger)
	pool.Start(ctx)
	defer pool.Stop()

	tokens := tokenizer.NewTiktokenEstimator(cfg.Tokenizer.FallbackEncoding)
	configs := memstore.NewBaseConfigStore(cfg.BaseConfig())
	if cfg.AI.ReloadInterval > 0 {
		reload := scheduler.NewScheduler("base_config_reload", cfg.AI.ReloadInterval, 0, func(context.Context) error {
			next, err := config.LoadConfig(*cfgPath, *devMode)
			if err != nil {
				return err
			}
			configs.Set(next.BaseConfig())
			return nil
		}, logger)
		reload.Start(ctx)
		defer reload.Stop()
	}

	turns := usecase.NewTurnService(chats, tabs, configs, tokens, logger, usecase.WithSpawner(pool.Spawn))

	// ---- HTTP ----
	srv := api.NewServer(turns, limiter, api.ServerConfig{
		JWTSecret:      cfg.HTTP.JWTSecret,
		SendLimit:      cfg.HTTP.SendLimit,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, logger)
	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.HTTP.Port), 15*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server stopped")
	}
	logger.Info().Msg("shutdown complete")
}
