package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8889)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordSearch("serpapi", "desktop", time.Second, nil, false)
	RecordSearch("serpapi", "mobile", 0, errors.New("boom"), false)
	RecordNormalize(8, 2, 1)
	RecordComparison(62.5, 0)

	resp, err := http.Get("http://localhost:8889/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`serpcmp_search_requests_total{device="desktop",provider="serpapi",status="ok"}`,
		`serpcmp_search_requests_total{device="mobile",provider="serpapi",status="error"}`,
		`serpcmp_search_duration_seconds_bucket`,
		`serpcmp_results_total{fate="dropped"}`,
		`serpcmp_comparisons_total`,
		`serpcmp_similarity_percentage_bucket`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}
