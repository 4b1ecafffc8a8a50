package compare

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Keys read from a raw provider entry.
const (
	KeyPosition = "position"
	KeyTitle    = "title"
	KeyLink     = "link"
)

// PlaceholderTitle is what providers (and the table builder) use when no
// title is known. Entries carrying it are not kept.
const PlaceholderTitle = "N/A"

// NormalizeStats counts what Normalize kept and dropped.
type NormalizeStats struct {
	Retained   int
	Dropped    int
	Duplicates int
}

// Normalize converts raw provider entries into a ResultSet. Entries without a
// positive rank, a usable title or a link are silently dropped, as are later
// repeats of a link already kept. Input order is preserved.
func Normalize(raw []RawResult) ResultSet {
	rs, _ := NormalizeWithStats(raw)
	return rs
}

// NormalizeWithStats is Normalize that also reports what was dropped.
func NormalizeWithStats(raw []RawResult) (ResultSet, NormalizeStats) {
	var stats NormalizeStats
	out := make(ResultSet, 0, len(raw))
	seen := make(LinkSet, len(raw))

	for _, entry := range raw {
		rec, ok := extract(entry)
		if !ok {
			stats.Dropped++
			continue
		}
		if seen.Has(rec.Link) {
			stats.Duplicates++
			continue
		}
		seen.Add(rec.Link)
		out = append(out, rec)
	}

	stats.Retained = len(out)
	return out, stats
}

func extract(entry RawResult) (ResultRecord, bool) {
	if entry == nil {
		return ResultRecord{}, false
	}
	rank, ok := intValue(entry[KeyPosition])
	if !ok || rank <= 0 {
		return ResultRecord{}, false
	}
	title := strings.TrimSpace(stringValue(entry[KeyTitle]))
	if title == "" || title == PlaceholderTitle {
		return ResultRecord{}, false
	}
	link := strings.TrimSpace(stringValue(entry[KeyLink]))
	if link == "" {
		return ResultRecord{}, false
	}
	return ResultRecord{Rank: rank, Title: title, Link: link}, true
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// intValue accepts the shapes a position shows up in after JSON decoding or
// when built by hand.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 32)
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
