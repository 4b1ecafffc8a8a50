package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/serpcmp/internal/storage"
)

// Summary aggregates stored snapshots.
type Summary struct {
	TotalRuns         int
	TotalQueries      int
	FailedQueries     int
	AverageSimilarity float64
	MinSimilarity     float64
	MaxSimilarity     float64
	ByProvider        map[string]int
	ByKeyword         map[string]int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

// GenerateSummary processes snapshots to generate summary metrics.
func GenerateSummary(snaps []*storage.Snapshot) Summary {
	s := Summary{
		ByProvider: make(map[string]int),
		ByKeyword:  make(map[string]int),
	}

	if len(snaps) == 0 {
		return s
	}

	s.StartTime = snaps[0].CreatedAt
	s.EndTime = snaps[0].CreatedAt
	s.MinSimilarity = snaps[0].Percentage
	s.MaxSimilarity = snaps[0].Percentage

	var total float64
	for _, snap := range snaps {
		s.TotalRuns++
		s.TotalQueries += len(snap.Queries)
		s.FailedQueries += snap.Failed()
		s.ByProvider[snap.Provider]++
		s.ByKeyword[snap.ReferenceKeyword()]++

		total += snap.Percentage
		s.MinSimilarity = min(s.MinSimilarity, snap.Percentage)
		s.MaxSimilarity = max(s.MaxSimilarity, snap.Percentage)

		if snap.CreatedAt.Before(s.StartTime) {
			s.StartTime = snap.CreatedAt
		}
		if snap.CreatedAt.After(s.EndTime) {
			s.EndTime = snap.CreatedAt
		}
	}

	s.AverageSimilarity = total / float64(s.TotalRuns)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteSummaryJSON writes the summary to the provided writer in JSON format.
func WriteSummaryJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteSummaryText writes a human-readable summary to the provided writer.
func WriteSummaryText(w io.Writer, summary Summary) error {
	const summaryTmpl = `serpcmp Run Summary
-------------------
{{- if .TotalRuns}}
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Duration}}
{{- end}}
Runs:           {{.TotalRuns}}
Queries:        {{.TotalQueries}} ({{.FailedQueries}} failed)
Similarity:     avg {{printf "%.2f" .AverageSimilarity}}%  min {{printf "%.2f" .MinSimilarity}}%  max {{printf "%.2f" .MaxSimilarity}}%

Providers:
{{- range $name, $count := .ByProvider}}
  {{$name}}: {{$count}}
{{- else}}
  None
{{- end}}

Reference keywords:
{{- range $kw, $count := .ByKeyword}}
  {{$kw}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("summaryReport").Parse(summaryTmpl)
	if err != nil {
		return fmt.Errorf("parse summary template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
