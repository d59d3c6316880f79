// Package formatter renders verification reports: markdown for humans, JSON,
// JSONL and YAML for orchestration, and tables for the terminal.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/boshu2/hookcheck/internal/storage"
	"github.com/boshu2/hookcheck/internal/verify"
)

// Formatter writes a report in one output format.
type Formatter interface {
	Format(w io.Writer, r *verify.Report) error
	Extension() string
}

// Output names accepted by ForOutput.
const (
	OutputTable    = "table"
	OutputJSON     = "json"
	OutputJSONL    = "jsonl"
	OutputYAML     = "yaml"
	OutputMarkdown = "markdown"
)

// Outputs lists every supported output name.
var Outputs = []string{OutputTable, OutputJSON, OutputJSONL, OutputYAML, OutputMarkdown}

// ForOutput returns the formatter for an output name.
func ForOutput(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OutputTable:
		return NewTableFormatter(), nil
	case OutputJSON:
		return NewJSONFormatter(), nil
	case OutputJSONL:
		return NewJSONLFormatter(), nil
	case OutputYAML, "yml":
		return NewYAMLFormatter(), nil
	case OutputMarkdown, "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", name, strings.Join(Outputs, ", "))
	}
}

// Artifacts returns the files persisted for a run: report.md and summary.json.
func Artifacts(r *verify.Report) []storage.Artifact {
	md := NewMarkdownFormatter()
	js := NewJSONFormatter()
	return []storage.Artifact{
		{
			Name:  storage.ReportFile,
			Write: func(w io.Writer) error { return md.Format(w, r) },
		},
		{
			Name:  storage.SummaryFile,
			Write: func(w io.Writer) error { return js.Format(w, r) },
		},
	}
}

// IndexEntry builds the run index line for r stored in runDir.
func IndexEntry(r *verify.Report, runDir string) *storage.IndexEntry {
	return &storage.IndexEntry{
		RunID:           r.RunID,
		Date:            r.StartedAt,
		TasksPath:       r.TasksPath,
		SpecID:          r.SpecID,
		RunDir:          runDir,
		Tasks:           r.Totals.Tasks,
		Verified:        r.Totals.Verified,
		NotVerified:     r.Totals.NotVerified,
		NeedsManual:     r.Totals.NeedsManual,
		MissingHooks:    r.Totals.MissingHooks,
		InvalidScope:    r.Totals.InvalidScope,
		BudgetExhausted: r.Budget.Exhausted,
	}
}
