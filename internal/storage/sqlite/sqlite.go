package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/serpcmp/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	provider TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	reference_keyword TEXT NOT NULL,
	percentage REAL NOT NULL,
	queries TEXT NOT NULL,
	common_links TEXT NOT NULL,
	rows TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_reference_idx ON snapshots (reference_keyword, created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, snap *storage.Snapshot) error {
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
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		snap.ID,
		snap.CreatedAt,
		snap.Provider,
		snap.ResultCount,
		snap.ReferenceKeyword(),
		snap.Percentage,
		string(queriesJSON),
		string(linksJSON),
		string(rowsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Snapshot, error) {
	query := `SELECT id, created_at, provider, result_count, percentage, queries, common_links, rows FROM snapshots WHERE 1=1`
	args := []any{}

	if filter.Keyword != "" {
		query += ` AND reference_keyword = ?`
		args = append(args, filter.Keyword)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var results []*storage.Snapshot
	for rows.Next() {
		var s storage.Snapshot
		var queriesJSON, linksJSON, rowsJSON string

		err := rows.Scan(&s.ID, &s.CreatedAt, &s.Provider, &s.ResultCount, &s.Percentage, &queriesJSON, &linksJSON, &rowsJSON)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := decode(&s, []byte(queriesJSON), []byte(linksJSON), []byte(rowsJSON)); err != nil {
			return nil, err
		}
		results = append(results, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return results, nil
}

func decode(s *storage.Snapshot, queriesJSON, linksJSON, rowsJSON []byte) error {
	if err := json.Unmarshal(queriesJSON, &s.Queries); err != nil {
		return fmt.Errorf("decode queries: %w", err)
	}
	if err := json.Unmarshal(linksJSON, &s.CommonLinks); err != nil {
		return fmt.Errorf("decode common links: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &s.Rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
