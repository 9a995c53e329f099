package repository

import (
	"context"

	"chat-stream-engine/internal/domain/model"
)

// -----------------------------
// Chat definitions
// -----------------------------

type ChatInfoRepository interface {
	FindByID(ctx context.Context, id string) (*model.ChatInfo, error)
	List(ctx context.Context) ([]*model.ChatInfo, error)
	Save(ctx context.Context, info *model.ChatInfo) error
}

// ConfigProvider supplies the global base config for each turn.
type ConfigProvider interface {
	BaseConfig(ctx context.Context) (model.BaseConfig, error)
}
