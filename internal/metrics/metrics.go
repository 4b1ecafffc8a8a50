package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcmp_search_requests_total",
			Help: "Total number of provider searches, by outcome",
		},
		[]string{"provider", "device", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpcmp_search_duration_seconds",
			Help:    "Duration of provider searches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcmp_results_total",
			Help: "Raw result entries seen during normalization, by fate",
		},
		[]string{"fate"},
	)

	ComparisonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpcmp_comparisons_total",
			Help: "Total number of comparison runs completed",
		},
	)

	SimilarityPercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "serpcmp_similarity_percentage",
			Help:    "Similarity percentage of completed comparisons",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	LookupMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpcmp_lookup_misses_total",
			Help: "Common links that could not be found in a result set while building the table",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcmp_proxy_failures_total",
			Help: "Total number of proxy failures during scrapes",
		},
		[]string{"proxy_url"},
	)
)

// RecordSearch updates the search metrics for one provider call.
func RecordSearch(provider, device string, duration time.Duration, err error, cached bool) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case cached:
		status = "cached"
	}
	SearchRequestsTotal.WithLabelValues(provider, device, status).Inc()
	if err == nil && !cached {
		SearchDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// RecordNormalize counts retained, dropped and duplicate entries.
func RecordNormalize(retained, dropped, duplicates int) {
	ResultsTotal.WithLabelValues("retained").Add(float64(retained))
	ResultsTotal.WithLabelValues("dropped").Add(float64(dropped))
	ResultsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
}

// RecordComparison records a finished comparison.
func RecordComparison(percentage float64, misses int) {
	ComparisonsTotal.Inc()
	SimilarityPercentage.Observe(percentage)
	if misses > 0 {
		LookupMissesTotal.Add(float64(misses))
	}
}

// Handler exposes the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
