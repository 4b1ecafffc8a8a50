// Package storage exports finished comparison runs for audit. Nothing in a
// comparison ever reads a snapshot back.
package storage

import (
	"context"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
)

// QuerySummary records how one query of a run fared.
type QuerySummary struct {
	Query   compare.Query `json:"query"`
	Results int           `json:"results"`
	Error   string        `json:"error,omitempty"`
}

// Snapshot is the exported record of one finished comparison run.
type Snapshot struct {
	ID          string                  `json:"id"`
	CreatedAt   time.Time               `json:"created_at"`
	Provider    string                  `json:"provider"`
	ResultCount int                     `json:"result_count"`
	Queries     []QuerySummary          `json:"queries"`
	Percentage  float64                 `json:"similarity_percentage"`
	CommonLinks []string                `json:"common_links"`
	Rows        []compare.ComparisonRow `json:"rows"`
}

// ReferenceKeyword is the keyword of the first query, which Filter.Keyword matches.
func (s *Snapshot) ReferenceKeyword() string {
	if len(s.Queries) == 0 {
		return ""
	}
	return s.Queries[0].Query.Keyword
}

// Failed counts the queries whose provider call failed.
func (s *Snapshot) Failed() int {
	n := 0
	for _, q := range s.Queries {
		if q.Error != "" {
			n++
		}
	}
	return n
}

// Filter allows querying for specific snapshots.
type Filter struct {
	Keyword string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match reports whether s passes the keyword and time filters.
func (f Filter) Match(s *Snapshot) bool {
	if f.Keyword != "" && s.ReferenceKeyword() != f.Keyword {
		return false
	}
	if f.Since != nil && s.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies offset and limit to an already ordered slice.
func (f Filter) Page(all []*Snapshot) []*Snapshot {
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return []*Snapshot{}
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all
}

// Backend defines the interface for storing and querying snapshots.
// Query returns newest first.
type Backend interface {
	Save(ctx context.Context, snap *Snapshot) error
	Query(ctx context.Context, filter Filter) ([]*Snapshot, error)
	Close() error
}
