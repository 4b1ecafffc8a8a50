package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/serp"
	"github.com/FranksOps/serpcmp/internal/storage"
)

// mockProvider answers from a fixed table keyed by keyword.
type mockProvider struct {
	mu        sync.Mutex
	results   map[string][]compare.RawResult
	fail      map[string]error
	needsCred bool
	calls     []serp.Request
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) RequiresCredential() bool { return m.needsCred }

func (m *mockProvider) Search(ctx context.Context, req serp.Request) (*serp.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if err := m.fail[req.Keyword]; err != nil {
		return nil, err
	}
	return &serp.Response{Provider: "mock", Organic: m.results[req.Keyword]}, nil
}

// memBackend is an in-memory storage.Backend.
type memBackend struct {
	mu    sync.Mutex
	snaps []*storage.Snapshot
	err   error
}

func (b *memBackend) Save(ctx context.Context, s *storage.Snapshot) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, s)
	return nil
}

func (b *memBackend) Query(ctx context.Context, f storage.Filter) ([]*storage.Snapshot, error) {
	return b.snaps, nil
}

func (b *memBackend) Close() error { return nil }

var (
	queryA = compare.Query{Keyword: "A", Language: "fr", Device: compare.DeviceDesktop, Country: "fr"}
	queryB = compare.Query{Keyword: "B", Language: "en", Device: compare.DeviceMobile, Country: "us"}
)

func newMock() *mockProvider {
	return &mockProvider{
		results: map[string][]compare.RawResult{
			"A": {
				{"position": 1, "title": "X", "link": "u1"},
				{"position": 2, "title": "Y", "link": "u2"},
			},
			"B": {
				{"position": 3, "title": "X2", "link": "u1"},
				{"position": 1, "title": "Z", "link": "u3"},
				{"position": 4, "title": "N/A", "link": "u4"},
			},
		},
		fail: map[string]error{},
	}
}

func TestPipeline_Run(t *testing.T) {
	mock := newMock()
	backend := &memBackend{}
	p := &Pipeline{Provider: mock, Backend: backend}

	run, err := p.Run(context.Background(), RunConfig{
		Queries:     []compare.Query{queryA, {Keyword: "  "}, queryB},
		ResultCount: 10,
		Credential:  "key",
	})
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if len(mock.calls) != 2 {
		t.Fatalf("expected blank query to be skipped, got %d calls", len(mock.calls))
	}
	for _, c := range mock.calls {
		if c.Count != 10 || c.Credential != "key" {
			t.Errorf("unexpected request %+v", c)
		}
	}

	c := run.Comparison
	if c.Percentage != 50 {
		t.Errorf("expected 50%%, got %v", c.Percentage)
	}
	if len(c.Queries) != 2 || c.Queries[1].Keyword != "B" {
		t.Errorf("expected query order preserved, got %+v", c.Queries)
	}
	if len(c.Table.Rows) != 1 || c.Table.Rows[0].Title != "X" {
		t.Errorf("unexpected rows %+v", c.Table.Rows)
	}
	if run.Diagnostics[1].Dropped != 1 || run.Diagnostics[1].Results != 2 {
		t.Errorf("unexpected diagnostic %+v", run.Diagnostics[1])
	}
	if len(run.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", run.Warnings)
	}

	if len(backend.snaps) != 1 {
		t.Fatalf("expected 1 saved snapshot, got %d", len(backend.snaps))
	}
	snap := backend.snaps[0]
	if snap.ID != run.ID || snap.ReferenceKeyword() != "A" || snap.Percentage != 50 || snap.Provider != "mock" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestPipeline_ProviderFailureDegrades(t *testing.T) {
	mock := newMock()
	mock.fail["B"] = &serp.ProviderError{Provider: "mock", Keyword: "B", StatusCode: 401, Message: "Invalid API key"}

	run, err := (&Pipeline{Provider: mock}).Run(context.Background(), RunConfig{Queries: []compare.Query{queryA, queryB}})
	if err != nil {
		t.Fatalf("expected run to survive provider failure, got %v", err)
	}
	if run.Comparison.Percentage != 0 || run.Comparison.CommonLinks.Len() != 0 {
		t.Errorf("expected zero similarity, got %v", run.Comparison.Percentage)
	}
	d := run.Diagnostics[1]
	if d.Error == "" || d.StatusCode != 401 {
		t.Errorf("expected diagnostic for failed query, got %+v", d)
	}
	if len(run.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", run.Warnings)
	}
	if run.Snapshot().Failed() != 1 {
		t.Errorf("expected snapshot to record the failure")
	}
}

func TestPipeline_FailedReferenceQuery(t *testing.T) {
	mock := newMock()
	mock.fail["A"] = errors.New("boom")

	run, err := (&Pipeline{Provider: mock}).Run(context.Background(), RunConfig{Queries: []compare.Query{queryA, queryB}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Comparison.Percentage != 0 {
		t.Errorf("expected 0%% when the reference query fails, got %v", run.Comparison.Percentage)
	}
}

func TestPipeline_EmptyInput(t *testing.T) {
	mock := newMock()
	_, err := (&Pipeline{Provider: mock}).Run(context.Background(), RunConfig{Queries: []compare.Query{{Keyword: ""}}})
	if !errors.Is(err, compare.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no provider calls")
	}
}

func TestPipeline_MissingCredential(t *testing.T) {
	mock := newMock()
	mock.needsCred = true
	_, err := (&Pipeline{Provider: mock}).Run(context.Background(), RunConfig{Queries: []compare.Query{queryA}})
	if !errors.Is(err, serp.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no provider calls before the credential check")
	}
}

func TestPipeline_SaveFailureIsWarning(t *testing.T) {
	backend := &memBackend{err: errors.New("disk full")}
	run, err := (&Pipeline{Provider: newMock(), Backend: backend}).Run(context.Background(), RunConfig{Queries: []compare.Query{queryA}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Comparison.Percentage != 100 {
		t.Errorf("expected 100%% for a single query, got %v", run.Comparison.Percentage)
	}
	if len(run.Warnings) != 1 {
		t.Errorf("expected save failure warning, got %v", run.Warnings)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := newMock()
	mock.fail["A"] = context.Canceled
	mock.fail["B"] = context.Canceled
	if _, err := (&Pipeline{Provider: mock}).Run(ctx, RunConfig{Queries: []compare.Query{queryA, queryB}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
