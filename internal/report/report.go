package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/vecindex/pkg/types"
)

// Reporter writes command results either as styled text for people or as
// JSON for pipes.
type Reporter struct {
	out  io.Writer
	pipe bool

	label lipgloss.Style
	value lipgloss.Style
	title lipgloss.Style
	dim   lipgloss.Style
}

// New returns a reporter writing to out. Colour is enabled only when out
// is a terminal that supports it.
func New(out io.Writer, pipe bool) *Reporter {
	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:   out,
		pipe:  pipe,
		label: r.NewStyle().Width(18),
		value: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		title: r.NewStyle().Bold(true).Underline(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Pipe reports whether output is JSON.
func (r *Reporter) Pipe() bool {
	return r.pipe
}

// ReportStats writes the outcome of a sync run.
func (r *Reporter) ReportStats(stats types.SyncStats) error {
	if r.pipe {
		return json.NewEncoder(r.out).Encode(stats)
	}
	rows := []struct {
		label string
		n     int
	}{
		{"Added:", stats.Added},
		{"Updated:", stats.Updated},
		{"Removed orphans:", stats.Removed},
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(r.label.Render(row.label))
		b.WriteString(r.value.Render(fmt.Sprint(row.n)))
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// CollectionInfo describes one collection for "ls".
type CollectionInfo struct {
	Project           string `json:"project-root"`
	ID                string `json:"collection"`
	Chunks            int    `json:"size"`
	Files             int    `json:"num_files"`
	EmbeddingFunction string `json:"embedding_function"`
}

// Collections writes a listing of collections.
func (r *Reporter) Collections(infos []CollectionInfo) error {
	if r.pipe {
		if infos == nil {
			infos = []CollectionInfo{}
		}
		return json.NewEncoder(r.out).Encode(infos)
	}
	if len(infos) == 0 {
		_, err := fmt.Fprintln(r.out, r.dim.Render("No collections."))
		return err
	}

	var b strings.Builder
	for _, info := range infos {
		b.WriteString(r.title.Render(info.Project))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s%s\n", r.label.Render("Collection:"), info.ID)
		fmt.Fprintf(&b, "%s%s\n", r.label.Render("Files:"), r.value.Render(fmt.Sprint(info.Files)))
		fmt.Fprintf(&b, "%s%s\n", r.label.Render("Chunks:"), r.value.Render(fmt.Sprint(info.Chunks)))
		fmt.Fprintf(&b, "%s%s\n", r.label.Render("Embedding:"), info.EmbeddingFunction)
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Include selects which fields of a query result are shown.
type Include struct {
	Path     bool
	Document bool
}

// QueryResults writes ranked query results.
func (r *Reporter) QueryResults(results []types.QueryResult, inc Include) error {
	if r.pipe {
		out := make([]map[string]any, 0, len(results))
		for _, res := range results {
			m := map[string]any{}
			if inc.Path {
				m["path"] = res.Path
			}
			if inc.Document {
				m["document"] = res.Document
			}
			out = append(out, m)
		}
		return json.NewEncoder(r.out).Encode(out)
	}

	var b strings.Builder
	for i, res := range results {
		if inc.Path {
			fmt.Fprintf(&b, "%s %s\n", r.title.Render(res.Path), r.dim.Render(fmt.Sprintf("(distance %.4f)", res.Distance)))
		}
		if inc.Document {
			b.WriteString(res.Document)
			if !strings.HasSuffix(res.Document, "\n") {
				b.WriteString("\n")
			}
		}
		if i < len(results)-1 && inc.Document {
			b.WriteString(r.dim.Render(strings.Repeat("─", 40)))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}
