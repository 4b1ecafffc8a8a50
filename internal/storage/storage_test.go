package storage

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
)

func TestSnapshot_Helpers(t *testing.T) {
	s := &Snapshot{
		Queries: []QuerySummary{
			{Query: compare.Query{Keyword: "shoes"}, Results: 10},
			{Query: compare.Query{Keyword: "boots"}, Error: "quota exceeded"},
		},
	}
	if s.ReferenceKeyword() != "shoes" {
		t.Errorf("expected reference keyword shoes, got %s", s.ReferenceKeyword())
	}
	if s.Failed() != 1 {
		t.Errorf("expected 1 failed query, got %d", s.Failed())
	}
	if (&Snapshot{}).ReferenceKeyword() != "" {
		t.Errorf("expected empty reference keyword for empty snapshot")
	}
}

func TestFilter_MatchAndPage(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	old := &Snapshot{ID: "old", CreatedAt: now.Add(-2 * time.Hour), Queries: []QuerySummary{{Query: compare.Query{Keyword: "a"}}}}
	recent := &Snapshot{ID: "recent", CreatedAt: now, Queries: []QuerySummary{{Query: compare.Query{Keyword: "b"}}}}

	if (Filter{Keyword: "a"}).Match(recent) {
		t.Errorf("keyword filter should not match")
	}
	if !(Filter{Keyword: "b", Since: &past}).Match(recent) {
		t.Errorf("expected match")
	}
	if (Filter{Since: &past}).Match(old) {
		t.Errorf("since filter should exclude old snapshot")
	}

	all := []*Snapshot{recent, old}
	if got := (Filter{Offset: 1}).Page(all); len(got) != 1 || got[0].ID != "old" {
		t.Errorf("unexpected offset page %v", got)
	}
	if got := (Filter{Limit: 1}).Page(all); len(got) != 1 || got[0].ID != "recent" {
		t.Errorf("unexpected limit page %v", got)
	}
	if got := (Filter{Offset: 5}).Page(all); len(got) != 0 {
		t.Errorf("expected empty page, got %v", got)
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, snap *Snapshot) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*Snapshot, error) {
	return nil, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}
