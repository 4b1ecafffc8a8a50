package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Device is the device class a query is issued for.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
)

// Valid reports whether d is one of the supported devices.
func (d Device) Valid() bool {
	return d == DeviceDesktop || d == DeviceMobile
}

// Query is one comparison unit. Order within a run matters: the first query
// is the reference for the similarity percentage and columns follow query order.
type Query struct {
	Keyword  string `json:"keyword" mapstructure:"keyword"`
	Language string `json:"language" mapstructure:"language"`
	Device   Device `json:"device" mapstructure:"device"`
	Country  string `json:"country" mapstructure:"country"`
}

// Label identifies the query in headings and rank column names.
func (q Query) Label() string {
	return fmt.Sprintf("%s, %s, on %s, %s", q.Keyword, q.Language, q.Device, q.Country)
}

// RawResult is one loosely structured entry as returned by a search provider.
type RawResult map[string]any

// ResultRecord is one organic search result that survived normalization.
type ResultRecord struct {
	Rank  int    `json:"rank"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ResultSet is the ordered sequence of records for one query.
type ResultSet []ResultRecord

// Links returns the set of links in rs.
func (rs ResultSet) Links() LinkSet {
	s := make(LinkSet, len(rs))
	for _, r := range rs {
		s.Add(r.Link)
	}
	return s
}

// Lookup returns the first record with the given link.
func (rs ResultSet) Lookup(link string) (ResultRecord, bool) {
	for _, r := range rs {
		if r.Link == link {
			return r, true
		}
	}
	return ResultRecord{}, false
}

// LinkSet is a set of result links.
type LinkSet map[string]struct{}

// NewLinkSet builds a set from the given links.
func NewLinkSet(links ...string) LinkSet {
	s := make(LinkSet, len(links))
	for _, l := range links {
		s.Add(l)
	}
	return s
}

func (s LinkSet) Add(link string) { s[link] = struct{}{} }

func (s LinkSet) Has(link string) bool {
	_, ok := s[link]
	return ok
}

func (s LinkSet) Len() int { return len(s) }

// Sorted returns the links in lexical order.
func (s LinkSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s LinkSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *LinkSet) UnmarshalJSON(data []byte) error {
	var links []string
	if err := json.Unmarshal(data, &links); err != nil {
		return err
	}
	*s = NewLinkSet(links...)
	return nil
}

// Intersect returns the links present in both s and other.
func (s LinkSet) Intersect(other LinkSet) LinkSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(LinkSet, len(small))
	for l := range small {
		if large.Has(l) {
			out.Add(l)
		}
	}
	return out
}

// Rank is a position in a result set. NoRank marks a lookup miss.
type Rank int

const NoRank Rank = 0

func (r Rank) String() string {
	if r == NoRank {
		return "-"
	}
	return fmt.Sprintf("%d", int(r))
}

// LabeledSet pairs a result set with the query it was retrieved for.
type LabeledSet struct {
	Query Query
	Set   ResultSet
}

// ComparisonRow is one common link with its rank under every query.
type ComparisonRow struct {
	Ranks []Rank `json:"ranks"`
	Link  string `json:"link"`
	Title string `json:"title"`
}

// LookupMiss records a common link that could not be found in a query's set.
type LookupMiss struct {
	Link       string `json:"link"`
	QueryIndex int    `json:"query_index"`
	Query      string `json:"query"`
}

// Table is the consolidated rank matrix over common links.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    []ComparisonRow `json:"rows"`
	Misses  []LookupMiss    `json:"misses,omitempty"`
}

// Comparison is the derived outcome of one comparison.
type Comparison struct {
	Queries     []Query     `json:"queries"`
	Sets        []ResultSet `json:"sets"`
	Percentage  float64     `json:"similarity_percentage"`
	CommonLinks LinkSet     `json:"common_links"`
	Table       Table       `json:"table"`
}

// Common returns the common links in lexical order.
func (c *Comparison) Common() []string {
	return c.CommonLinks.Sorted()
}

// Headline formats the similarity the way it is shown to users.
func (c *Comparison) Headline() string {
	labels := make([]string, len(c.Queries))
	for i, q := range c.Queries {
		labels[i] = q.Label()
	}
	return fmt.Sprintf("%.2f%% of similarity between: %s", c.Percentage, strings.Join(labels, " | "))
}
