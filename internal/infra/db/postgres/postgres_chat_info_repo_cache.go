package postgres

import (
	"context"

	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"
	"chat-stream-engine/internal/infra/metrics"
	red "chat-stream-engine/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.ChatInfoRepository = (*chatInfoRepoCacheDecorator)(nil)

type chatInfoRepoCacheDecorator struct {
	inner repository.ChatInfoRepository
	cache *red.ChatInfoCache
	log   *zerolog.Logger
}

func NewChatInfoRepoCacheDecorator(inner repository.ChatInfoRepository, cache *red.ChatInfoCache, log *zerolog.Logger) repository.ChatInfoRepository {
	return &chatInfoRepoCacheDecorator{
		inner: inner,
		cache: cache,
		log:   log,
	}
}

func (d *chatInfoRepoCacheDecorator) FindByID(ctx context.Context, id string) (*model.ChatInfo, error) {
	info, err := d.cache.GetChat(ctx, id)
	if err == nil {
		metrics.IncCacheRequest("chat_info", "hit")
		return info, nil
	}
	if err != redis.Nil {
		d.log.Warn().Err(err).Str("chat_id", id).Msg("chat_info cache read")
	}

	metrics.IncCacheRequest("chat_info", "miss")
	info, err = d.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.cache.StoreChat(ctx, info); err != nil {
		d.log.Warn().Err(err).Str("chat_id", id).Msg("chat_info cache write")
	}
	return info, nil
}

func (d *chatInfoRepoCacheDecorator) List(ctx context.Context) ([]*model.ChatInfo, error) {
	list, err := d.cache.GetList(ctx)
	if err == nil {
		metrics.IncCacheRequest("chat_info_list", "hit")
		return list, nil
	}
	if err != redis.Nil {
		d.log.Warn().Err(err).Msg("chat_info list cache read")
	}

	metrics.IncCacheRequest("chat_info_list", "miss")
	list, err = d.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.cache.StoreList(ctx, list); err != nil {
		d.log.Warn().Err(err).Msg("chat_info list cache write")
	}
	return list, nil
}

// Save drops the cached chat and list, then writes through.
func (d *chatInfoRepoCacheDecorator) Save(ctx context.Context, info *model.ChatInfo) error {
	if err := d.cache.Invalidate(ctx, info.ID); err != nil {
		d.log.Warn().Err(err).Str("chat_id", info.ID).Msg("chat_info cache invalidate")
	}
	return d.inner.Save(ctx, info)
}
