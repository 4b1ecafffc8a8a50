// Package pipeline runs one comparison end to end: fetch a result list per
// query, normalize, compare, then export the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/metrics"
	"github.com/FranksOps/serpcmp/internal/serp"
	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight provider calls when unset.
const DefaultConcurrency = 4

// Pipeline wires a provider to the comparison engine and an optional backend.
type Pipeline struct {
	Provider    serp.Provider
	Backend     storage.Backend // optional
	Logger      *slog.Logger
	Concurrency int
}

// RunConfig is the input of one run.
type RunConfig struct {
	Queries     []compare.Query
	ResultCount int
	Credential  string
}

// Diagnostic describes how the search for one query went.
type Diagnostic struct {
	Query      compare.Query  `json:"query"`
	Results    int            `json:"results"`
	Dropped    int            `json:"dropped"`
	Duplicates int            `json:"duplicates"`
	Cached     bool           `json:"cached"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Run is the outcome of Pipeline.Run.
type Run struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	Provider    string              `json:"provider"`
	ResultCount int                 `json:"result_count"`
	Comparison  *compare.Comparison `json:"comparison"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Snapshot converts the run into its exported form.
func (r *Run) Snapshot() *storage.Snapshot {
	s := &storage.Snapshot{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		Provider:    r.Provider,
		ResultCount: r.ResultCount,
		Queries:     make([]storage.QuerySummary, len(r.Diagnostics)),
	}
	for i, d := range r.Diagnostics {
		s.Queries[i] = storage.QuerySummary{Query: d.Query, Results: d.Results, Error: d.Error}
	}
	if r.Comparison != nil {
		s.Percentage = r.Comparison.Percentage
		s.CommonLinks = r.Comparison.Common()
		s.Rows = r.Comparison.Table.Rows
	}
	return s
}

// Run executes one comparison. A failing provider call never fails the run:
// the query gets an empty result set and a diagnostic. Errors are returned
// for empty input, a missing credential, or a cancelled context.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (*Run, error) {
	if p.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is nil")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	queries := compare.ActiveQueries(cfg.Queries)
	if len(queries) == 0 {
		return nil, compare.ErrEmptyInput
	}
	if cfg.Credential == "" && serp.NeedsCredential(p.Provider) {
		return nil, serp.ErrMissingCredential
	}

	run := &Run{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Provider:    p.Provider.Name(),
		ResultCount: cfg.ResultCount,
		Diagnostics: make([]Diagnostic, len(queries)),
	}
	raw := make([][]compare.RawResult, len(queries))

	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, q := range queries {
		g.Go(func() error {
			diag := Diagnostic{Query: q}
			start := time.Now()
			resp, err := p.Provider.Search(gctx, serp.RequestFor(q, cfg.ResultCount, cfg.Credential))
			diag.Duration = time.Since(start)
			metrics.RecordSearch(run.Provider, string(q.Device), diag.Duration, err, resp != nil && resp.Cached)

			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				diag.Error = err.Error()
				var perr *serp.ProviderError
				if errors.As(err, &perr) {
					diag.StatusCode = perr.StatusCode
					diag.Raw = perr.Raw
				}
				logger.Warn("search failed", "keyword", q.Keyword, "device", q.Device, "err", err)
				run.Diagnostics[i] = diag
				return nil
			}

			diag.Cached = resp.Cached
			diag.Raw = resp.Raw
			raw[i] = resp.Organic
			run.Diagnostics[i] = diag
			logger.Debug("search done", "keyword", q.Keyword, "device", q.Device, "entries", len(resp.Organic), "cached", resp.Cached)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	sets := make([]compare.ResultSet, len(queries))
	for i := range queries {
		set, stats := compare.NormalizeWithStats(raw[i])
		sets[i] = set
		metrics.RecordNormalize(stats.Retained, stats.Dropped, stats.Duplicates)

		d := &run.Diagnostics[i]
		d.Results = stats.Retained
		d.Dropped = stats.Dropped
		d.Duplicates = stats.Duplicates
		if len(set) == 0 {
			run.Warnings = append(run.Warnings, fmt.Sprintf("No valid results for %s", queries[i].Label()))
		}
	}

	cmp, err := compare.Compare(queries, sets)
	if err != nil {
		return nil, err
	}
	run.Comparison = cmp

	for _, m := range cmp.Table.Misses {
		logger.Warn("common link missing from result set", "link", m.Link, "query", m.Query, "query_index", m.QueryIndex)
	}
	metrics.RecordComparison(cmp.Percentage, len(cmp.Table.Misses))
	logger.Info("comparison done", "id", run.ID, "queries", len(queries), "similarity", cmp.Percentage, "common", cmp.CommonLinks.Len())

	if p.Backend != nil {
		if err := p.Backend.Save(ctx, run.Snapshot()); err != nil {
			logger.Error("failed to save snapshot", "id", run.ID, "err", err)
			run.Warnings = append(run.Warnings, fmt.Sprintf("snapshot not saved: %v", err))
		}
	}
	return run, nil
}
