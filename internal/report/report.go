// Package report renders comparison runs and stored snapshots for people.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/pipeline"
)

// Format names accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHTML = "html"
	FormatCSV  = "csv"
)

// Write renders run in the named format.
func Write(w io.Writer, format string, run *pipeline.Run) error {
	switch format {
	case FormatText, "":
		return WriteText(w, run)
	case FormatJSON:
		return WriteJSON(w, run)
	case FormatHTML:
		return WriteHTML(w, run)
	case FormatCSV:
		return WriteCSV(w, run)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// view is what the templates see.
type view struct {
	Run      *pipeline.Run
	Sections []section
	Headline string
	Similar  bool
	Columns  []string
	Rows     [][]string
}

type section struct {
	Label   string
	Error   string
	Cached  bool
	Records compare.ResultSet
}

func newView(run *pipeline.Run) view {
	v := view{Run: run}
	c := run.Comparison
	if c == nil {
		return v
	}
	for i, q := range c.Queries {
		s := section{Label: q.Label(), Records: c.Sets[i]}
		if i < len(run.Diagnostics) {
			s.Error = run.Diagnostics[i].Error
			s.Cached = run.Diagnostics[i].Cached
		}
		v.Sections = append(v.Sections, s)
	}
	v.Headline = c.Headline()
	v.Similar = c.Percentage > 0
	v.Columns = c.Table.Columns
	v.Rows = tableRows(c.Table)
	return v
}

// tableRows flattens the table in column order: ranks, link, title.
func tableRows(t compare.Table) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(r.Ranks)+2)
		for _, rank := range r.Ranks {
			row = append(row, rank.String())
		}
		row = append(row, r.Link, r.Title)
		out = append(out, row)
	}
	return out
}

// WriteJSON writes the run to the provided writer in JSON format.
func WriteJSON(w io.Writer, run *pipeline.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	return nil
}

const textTmpl = `{{range .Sections -}}
Results for {{.Label}}{{if .Cached}} (cached){{end}}
{{if .Error}}  search failed: {{.Error}}
{{else if not .Records}}  no results
{{else}}{{table .Records}}{{end}}
{{end -}}
{{range .Run.Warnings}}warning: {{.}}
{{end -}}
{{.Headline}}
{{if .Similar}}
{{grid .Columns .Rows}}{{end}}`

// WriteText writes a human-readable report to the provided writer.
func WriteText(w io.Writer, run *pipeline.Run) error {
	t, err := template.New("textReport").Funcs(template.FuncMap{
		"table": recordTable,
		"grid":  grid,
	}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, newView(run)); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

func recordTable(rs compare.ResultSet) string {
	rows := make([][]string, len(rs))
	for i, r := range rs {
		rows[i] = []string{strconv.Itoa(r.Rank), r.Title, r.Link}
	}
	return grid([]string{"Rank", "Title", "Link"}, rows)
}

func grid(header []string, rows [][]string) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, "  "+strings.Join(r, "\t"))
	}
	tw.Flush()
	return b.String()
}

// WriteCSV writes the comparison table with its column headers.
func WriteCSV(w io.Writer, run *pipeline.Run) error {
	v := newView(run)
	cw := csv.NewWriter(w)
	if err := cw.Write(v.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(v.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>SERP Comparison</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .warn { color: #b36b00; }
  .err { color: red; }
  .headline { font-size: 20px; font-weight: bold; margin: 20px 0; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>SERP Comparison</h1>
  {{- range .Sections}}
  <h3>Results for {{.Label}}{{if .Cached}} (cached){{end}}</h3>
  {{- if .Error}}
  <p class="err">Search failed: {{.Error}}</p>
  {{- else}}
  <table>
    <tr><th>Rank</th><th>Title</th><th>Link</th></tr>
    {{- range .Records}}
    <tr><td>{{.Rank}}</td><td>{{.Title}}</td><td><a href="{{.Link}}">{{.Link}}</a></td></tr>
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>
  {{- end}}
  {{- end}}

  {{- range .Run.Warnings}}
  <p class="warn">{{.}}</p>
  {{- end}}

  <p class="headline">{{.Headline}}</p>
  {{- if .Similar}}
  <table>
    <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
    {{- range .Rows}}
    <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
    {{- end}}
  </table>
  {{- end}}
</body>
</html>
`

// WriteHTML writes a standalone HTML report to the provided writer.
func WriteHTML(w io.Writer, run *pipeline.Run) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, newView(run)); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
