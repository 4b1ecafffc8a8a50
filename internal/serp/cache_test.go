package serp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Search(ctx context.Context, req Request) (*Response, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("boom")
	}
	return &Response{Provider: c.Name(), Organic: []compare.RawResult{{"position": 1, "title": "t", "link": req.Keyword}}}, nil
}

func TestCached_HitsAndMisses(t *testing.T) {
	next := &countingProvider{}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	first, err := c.Search(ctx, Request{Keyword: "a", Count: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Errorf("first response should not be marked cached")
	}

	second, _ := c.Search(ctx, Request{Keyword: "a", Count: 10})
	if !second.Cached {
		t.Errorf("second response should come from cache")
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}

	// Different device is a different search.
	_, _ = c.Search(ctx, Request{Keyword: "a", Count: 10, Device: compare.DeviceMobile})
	if next.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", next.calls)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached responses, got %d", c.Len())
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after flush")
	}
}

func TestCached_FailuresNotCached(t *testing.T) {
	next := &countingProvider{fail: true}
	c := NewCached(next, 0)
	for i := 0; i < 2; i++ {
		if _, err := c.Search(context.Background(), Request{Keyword: "a"}); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("expected failures to reach upstream every time, got %d calls", next.calls)
	}
}
