package compare

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestCompare_EndToEnd(t *testing.T) {
	qa := Query{Keyword: "A", Language: "fr", Device: DeviceDesktop, Country: "fr"}
	qb := Query{Keyword: "B", Language: "en", Device: DeviceMobile, Country: "us"}

	rawA := []RawResult{
		{"position": 1, "title": "X", "link": "u1"},
		{"position": 2, "title": "Y", "link": "u2"},
	}
	rawB := []RawResult{
		{"position": 3, "title": "X2", "link": "u1"},
		{"position": 1, "title": "Z", "link": "u3"},
	}

	c, err := Compare([]Query{qa, qb}, []ResultSet{Normalize(rawA), Normalize(rawB)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Percentage != 50 {
		t.Errorf("expected 50%%, got %v", c.Percentage)
	}
	if !reflect.DeepEqual(c.Common(), []string{"u1"}) {
		t.Errorf("unexpected common links %v", c.Common())
	}
	if len(c.Table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(c.Table.Rows))
	}
	row := c.Table.Rows[0]
	if !reflect.DeepEqual(row.Ranks, []Rank{1, 3}) || row.Link != "u1" || row.Title != "X" {
		t.Errorf("unexpected row %+v", row)
	}
	if c.Headline() != "50.00% of similarity between: A, fr, on desktop, fr | B, en, on mobile, us" {
		t.Errorf("unexpected headline %q", c.Headline())
	}
}

func TestCompare_Idempotent(t *testing.T) {
	queries := []Query{{Keyword: "a"}, {Keyword: "b"}, {Keyword: "c"}}
	sets := []ResultSet{set("u1", "u2", "u3", "u4"), set("u4", "u3", "u2"), set("u2", "u4", "u9")}

	first, err := Compare(queries, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Compare(queries, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byLink := func(rows []ComparisonRow) []ComparisonRow {
		out := append([]ComparisonRow(nil), rows...)
		sort.Slice(out, func(i, j int) bool { return out[i].Link < out[j].Link })
		return out
	}
	if first.Percentage != second.Percentage {
		t.Errorf("percentage differs: %v vs %v", first.Percentage, second.Percentage)
	}
	if !reflect.DeepEqual(first.Common(), second.Common()) {
		t.Errorf("common links differ")
	}
	if !reflect.DeepEqual(byLink(first.Table.Rows), byLink(second.Table.Rows)) {
		t.Errorf("rows differ")
	}
	if first.Percentage != 50 {
		t.Errorf("expected 50, got %v", first.Percentage)
	}
}

func TestCompare_EmptyInput(t *testing.T) {
	if _, err := Compare(nil, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Compare([]Query{{Keyword: "  "}}, []ResultSet{nil}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for blank keyword, got %v", err)
	}
	if _, err := Compare([]Query{{Keyword: "a"}}, nil); err == nil {
		t.Errorf("expected error for mismatched sets")
	}

	c, err := Compare([]Query{{Keyword: "a"}, {Keyword: ""}}, []ResultSet{set("u1"), nil})
	if err != nil {
		t.Fatalf("expected blank query to be dropped, got %v", err)
	}
	if len(c.Queries) != 1 || len(c.Sets) != 1 || c.Queries[0].Keyword != "a" {
		t.Errorf("expected only the keyword query to remain, got %+v", c.Queries)
	}
	if c.Percentage != 100 || !reflect.DeepEqual(c.Common(), []string{"u1"}) {
		t.Errorf("expected 100%% over u1, got %v %v", c.Percentage, c.Common())
	}
	if len(c.Table.Columns) != 3 {
		t.Errorf("expected one rank column plus Link and Title, got %v", c.Table.Columns)
	}
}

func TestCompare_BlankQueryDropsItsSet(t *testing.T) {
	queries := []Query{{Keyword: " "}, {Keyword: "a"}, {Keyword: "b"}}
	sets := []ResultSet{set("u9"), set("u1", "u2"), set("u2", "u3")}

	c, err := Compare(queries, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Percentage != 50 {
		t.Errorf("expected reference to be the first non-blank query, got %v", c.Percentage)
	}
	if !reflect.DeepEqual(c.Common(), []string{"u2"}) {
		t.Errorf("unexpected common links %v", c.Common())
	}
}

func TestActiveQueries(t *testing.T) {
	got := ActiveQueries([]Query{{Keyword: "a"}, {Keyword: ""}, {Keyword: " b "}, {Keyword: "  "}})
	if len(got) != 2 || got[0].Keyword != "a" || got[1].Keyword != "b" {
		t.Errorf("unexpected active queries %+v", got)
	}
}
