package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"starboard-bot/internal/starboard"
)

// PostgresStore keeps the config list in a single table. SaveAll replaces the
// table contents in one transaction, matching the full-list overwrite model
// of the file backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const starboardSchema = `
CREATE TABLE IF NOT EXISTS starboard_configs (
	channel_id   TEXT NOT NULL,
	guild_id     TEXT NOT NULL,
	emoji        TEXT NOT NULL,
	threshold    INT  NOT NULL CHECK (threshold >= 1),
	self_star    BOOL NOT NULL,
	star_bot_msg BOOL NOT NULL,
	PRIMARY KEY (channel_id, emoji)
)`

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, starboardSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create starboard schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Load(ctx context.Context) ([]starboard.Config, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, guild_id, emoji, threshold, self_star, star_bot_msg
		 FROM starboard_configs
		 ORDER BY channel_id, emoji`,
	)
	if err != nil {
		return nil, fmt.Errorf("load starboards: %w", err)
	}
	defer rows.Close()

	var configs []starboard.Config
	for rows.Next() {
		var cfg starboard.Config
		if err := rows.Scan(
			&cfg.ChannelID,
			&cfg.GuildID,
			&cfg.Options.Emoji,
			&cfg.Options.Threshold,
			&cfg.Options.SelfStar,
			&cfg.Options.StarBotMsg,
		); err != nil {
			return nil, &starboard.StorageFormatError{Source: "starboard_configs", Err: err}
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load starboards: %w", err)
	}
	return configs, nil
}

func (s *PostgresStore) SaveAll(ctx context.Context, configs []starboard.Config) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save starboards: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM starboard_configs`); err != nil {
		return fmt.Errorf("save starboards: %w", err)
	}

	for _, cfg := range configs {
		_, err := tx.Exec(ctx,
			`INSERT INTO starboard_configs (channel_id, guild_id, emoji, threshold, self_star, star_bot_msg)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			cfg.ChannelID,
			cfg.GuildID,
			cfg.Options.Emoji,
			cfg.Options.Threshold,
			cfg.Options.SelfStar,
			cfg.Options.StarBotMsg,
		)
		if err != nil {
			return fmt.Errorf("save starboards: %w", err)
		}
	}

	return tx.Commit(ctx)
}
