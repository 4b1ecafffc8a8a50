// Package compare holds the comparison engine: normalizing raw result lists,
// intersecting their links and building the per-link rank table. It performs
// no I/O and keeps no state between calls.
package compare

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there is nothing to compare.
var ErrEmptyInput = errors.New("nothing to compare: every query keyword is empty")

// Compare runs the similarity calculation and table build over one result
// set per query. queries and sets must line up index by index. A query with
// a blank keyword is dropped together with its set.
func Compare(queries []Query, sets []ResultSet) (*Comparison, error) {
	if len(queries) > 0 && len(sets) != len(queries) {
		return nil, fmt.Errorf("compare: %d result sets for %d queries", len(sets), len(queries))
	}

	activeQueries := make([]Query, 0, len(queries))
	activeSets := make([]ResultSet, 0, len(sets))
	for i, q := range queries {
		q.Keyword = strings.TrimSpace(q.Keyword)
		if q.Keyword == "" {
			continue
		}
		activeQueries = append(activeQueries, q)
		activeSets = append(activeSets, sets[i])
	}
	if len(activeQueries) == 0 {
		return nil, ErrEmptyInput
	}
	queries, sets = activeQueries, activeSets

	pct, common := ComputeSimilarity(sets)

	labeled := make([]LabeledSet, len(queries))
	for i := range queries {
		labeled[i] = LabeledSet{Query: queries[i], Set: sets[i]}
	}

	return &Comparison{
		Queries:     queries,
		Sets:        sets,
		Percentage:  pct,
		CommonLinks: common,
		Table:       BuildTable(common, labeled),
	}, nil
}

// ActiveQueries drops queries whose keyword is blank, keeping order.
func ActiveQueries(queries []Query) []Query {
	out := make([]Query, 0, len(queries))
	for _, q := range queries {
		q.Keyword = strings.TrimSpace(q.Keyword)
		if q.Keyword == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
