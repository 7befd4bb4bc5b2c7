package group

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// PostgresPersister stores group configs as JSONB rows.
type PostgresPersister struct {
	db *dbpg.DB
}

// NewPostgresPersister creates a PostgresPersister with the given DB connection.
func NewPostgresPersister(db *dbpg.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

// EnsureSchema creates the group_configs table if it does not exist.
func (p *PostgresPersister) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS group_configs (
			group_id   BIGINT PRIMARY KEY,
			config     JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("schema: failed to create group_configs: %w", err)
	}

	return nil
}

// Save inserts or replaces the row of cfg.GroupID.
func (p *PostgresPersister) Save(ctx context.Context, cfg model.GroupConfig) error {
	query := `
		INSERT INTO group_configs (group_id, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id) DO UPDATE
		SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at
	`

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save: failed to marshal config: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, cfg.GroupID, data, cfg.CreatedAt, cfg.UpdatedAt); err != nil {
		return fmt.Errorf("save: failed to save group config: %w", err)
	}

	return nil
}

// Delete removes the row of groupID.
func (p *PostgresPersister) Delete(ctx context.Context, groupID int64) error {
	query := `
		DELETE FROM group_configs WHERE group_id = $1
	`

	if _, err := p.db.ExecContext(ctx, query, groupID); err != nil {
		return fmt.Errorf("delete: failed to delete group config: %w", err)
	}

	return nil
}

// LoadAll reads every row. Rows that fail to decode are logged and skipped.
func (p *PostgresPersister) LoadAll(ctx context.Context) ([]model.GroupConfig, error) {
	query := `
		SELECT group_id, config FROM group_configs ORDER BY group_id
	`

	rows, err := p.db.Master.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load: failed to query group configs: %w", err)
	}
	defer rows.Close()

	var cfgs []model.GroupConfig
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("load: failed to scan row: %w", err)
		}

		cfg := model.NewGroupConfig(id)
		if err := json.Unmarshal(data, &cfg); err != nil {
			zlog.Logger.Warn().Err(err).Int64("group_id", id).Msg("skipping unreadable group config")
			continue
		}
		cfg.GroupID = id

		cfgs = append(cfgs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load: failed to iterate rows: %w", err)
	}

	return cfgs, nil
}
