package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	provider TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	reference_keyword TEXT NOT NULL,
	percentage DOUBLE PRECISION NOT NULL,
	queries JSONB NOT NULL,
	common_links JSONB NOT NULL,
	rows JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_reference_idx ON snapshots (reference_keyword, created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, snap *storage.Snapshot) error {
	queriesJSON, err := json.Marshal(snap.Queries)
	if err != nil {
		return fmt.Errorf("encode queries: %w", err)
	}
	linksJSON, err := json.Marshal(snap.CommonLinks)
	if err != nil {
		return fmt.Errorf("encode common links: %w", err)
	}
	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	query := `
	INSERT INTO snapshots (
		id, created_at, provider, result_count, reference_keyword, percentage, queries, common_links, rows
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = b.pool.Exec(ctx, query,
		snap.ID,
		snap.CreatedAt,
		snap.Provider,
		snap.ResultCount,
		snap.ReferenceKeyword(),
		snap.Percentage,
		queriesJSON,
		linksJSON,
		rowsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Snapshot, error) {
	query := `SELECT id, created_at, provider, result_count, percentage, queries, common_links, rows FROM snapshots WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Keyword != "" {
		query += fmt.Sprintf(` AND reference_keyword = $%d`, paramCount)
		args = append(args, filter.Keyword)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var results []*storage.Snapshot
	for rows.Next() {
		var s storage.Snapshot
		var queriesJSON, linksJSON, rowsJSON []byte

		err := rows.Scan(&s.ID, &s.CreatedAt, &s.Provider, &s.ResultCount, &s.Percentage, &queriesJSON, &linksJSON, &rowsJSON)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(queriesJSON, &s.Queries); err != nil {
			return nil, fmt.Errorf("decode queries: %w", err)
		}
		if err := json.Unmarshal(linksJSON, &s.CommonLinks); err != nil {
			return nil, fmt.Errorf("decode common links: %w", err)
		}
		if err := json.Unmarshal(rowsJSON, &s.Rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		results = append(results, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
