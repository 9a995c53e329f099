package postgres

import (
	"context"
	"errors"
	"fmt"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.ChatInfoRepository = (*PostgresChatInfoRepo)(nil)

const checkViolation = "23514"

type PostgresChatInfoRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresChatInfoRepo(pool *pgxpool.Pool) *PostgresChatInfoRepo {
	return &PostgresChatInfoRepo{pool: pool}
}

func (r *PostgresChatInfoRepo) Save(ctx context.Context, info *model.ChatInfo) error {
	const sql = `
INSERT INTO chat_infos (id, name, prompt, chat_type, options)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
  SET name       = EXCLUDED.name,
      prompt     = EXCLUDED.prompt,
      chat_type  = EXCLUDED.chat_type,
      options    = EXCLUDED.options,
      updated_at = NOW();
`
	opts, err := encodeOptions(info.Options)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, sql, info.ID, info.Name, info.Prompt, string(info.ChatType), string(opts))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return domain.InvalidArgument(fmt.Sprintf("chat %s: %s", info.ID, pgErr.Message))
		}
		return fmt.Errorf("Save chat_info: %w", err)
	}
	return nil
}

func (r *PostgresChatInfoRepo) FindByID(ctx context.Context, id string) (*model.ChatInfo, error) {
	const sql = `
SELECT id, name, prompt, chat_type, options
  FROM chat_infos
 WHERE id = $1;
`
	info, err := scanChatInfo(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID chat_info: %w", err)
	}
	return info, nil
}

func (r *PostgresChatInfoRepo) List(ctx context.Context) ([]*model.ChatInfo, error) {
	const sql = `
SELECT id, name, prompt, chat_type, options
  FROM chat_infos
 ORDER BY created_at, id;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("List chat_infos: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatInfo
	for rows.Next() {
		info, err := scanChatInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func scanChatInfo(row pgx.Row) (*model.ChatInfo, error) {
	var (
		info     model.ChatInfo
		chatType string
		raw      []byte
	)
	if err := row.Scan(&info.ID, &info.Name, &info.Prompt, &chatType, &raw); err != nil {
		return nil, err
	}
	info.ChatType = model.ChatType(chatType)
	opts, err := model.DecodeChatOptions(info.ChatType, raw)
	if err != nil {
		return nil, err
	}
	info.Options = opts
	return &info, nil
}
