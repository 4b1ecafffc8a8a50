package compare

import "sort"

// Column names following the per-query rank columns.
const (
	ColumnLink  = "Link"
	ColumnTitle = "Title"
)

// RankColumn names the rank column for q.
func RankColumn(q Query) string {
	return "Rank for " + q.Label()
}

// BuildTable builds one row per common link holding the link's rank under
// each query, in query order. The title comes from the first set containing
// the link. A link missing from a set gets NoRank and is reported in
// Table.Misses; that can only happen when common was not derived from sets.
//
// Rows are ordered by rank in the first set, then by link.
func BuildTable(common LinkSet, sets []LabeledSet) Table {
	t := Table{
		Columns: make([]string, 0, len(sets)+2),
		Rows:    make([]ComparisonRow, 0, common.Len()),
	}
	for _, ls := range sets {
		t.Columns = append(t.Columns, RankColumn(ls.Query))
	}
	t.Columns = append(t.Columns, ColumnLink, ColumnTitle)

	for _, link := range common.Sorted() {
		row := ComparisonRow{
			Ranks: make([]Rank, len(sets)),
			Link:  link,
			Title: PlaceholderTitle,
		}
		titled := false
		for i, ls := range sets {
			rec, ok := ls.Set.Lookup(link)
			if !ok {
				row.Ranks[i] = NoRank
				t.Misses = append(t.Misses, LookupMiss{Link: link, QueryIndex: i, Query: ls.Query.Label()})
				continue
			}
			row.Ranks[i] = Rank(rec.Rank)
			if !titled && rec.Title != "" {
				row.Title = rec.Title
				titled = true
			}
		}
		t.Rows = append(t.Rows, row)
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := referenceRank(t.Rows[i]), referenceRank(t.Rows[j])
		if a != b {
			return a < b
		}
		return t.Rows[i].Link < t.Rows[j].Link
	})
	return t
}

// referenceRank sorts misses after every real rank.
func referenceRank(r ComparisonRow) int {
	if len(r.Ranks) == 0 || r.Ranks[0] == NoRank {
		return int(^uint(0) >> 1)
	}
	return int(r.Ranks[0])
}
