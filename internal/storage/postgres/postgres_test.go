package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if SERPCMP_TEST_PG_DSN is set
	dsn := os.Getenv("SERPCMP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: SERPCMP_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()
	keyword := "pg-" + uuid.NewString()

	snap := &storage.Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		Provider:    "serpapi",
		ResultCount: 10,
		Queries: []storage.QuerySummary{
			{Query: compare.Query{Keyword: keyword, Language: "en", Device: compare.DeviceDesktop, Country: "us"}, Results: 10},
		},
		Percentage:  100,
		CommonLinks: []string{"https://a.example"},
		Rows:        []compare.ComparisonRow{{Ranks: []compare.Rank{1}, Link: "https://a.example", Title: "A"}},
	}

	if err := b.Save(ctx, snap); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Keyword: keyword})
	if err != nil {
		t.Fatalf("Failed to query snapshots: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.ID != snap.ID || got.Percentage != 100 {
		t.Errorf("Unexpected snapshot %+v", got)
	}
	if len(got.Rows) != 1 || got.Rows[0].Link != "https://a.example" {
		t.Errorf("Unexpected rows %+v", got.Rows)
	}

	// Postgres timestamps might differ slightly in sub-millisecond precision
	// compared to Go time.Now(), checking Unix seconds is usually safe enough
	if got.CreatedAt.Unix() != snap.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", snap.CreatedAt, got.CreatedAt)
	}

	past := now.Add(-1 * time.Hour)
	resultsSince, err := b.Query(ctx, storage.Filter{Keyword: keyword, Since: &past, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(resultsSince) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsSince))
	}
}
