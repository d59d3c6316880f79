package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/hookcheck/internal/verify"
)

// JSONFormatter writes the whole report as one JSON document. This is the
// summary.json artifact.
type JSONFormatter struct {
	// Pretty enables indented JSON.
	Pretty bool
}

// NewJSONFormatter creates an indented JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		Pretty: true,
	}
}

// Format writes r as JSON.
func (jf *JSONFormatter) Format(w io.Writer, r *verify.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false) // Don't escape < > & in excerpts

	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(r)
}

// Extension returns the file extension for JSON.
func (jf *JSONFormatter) Extension() string {
	return ".json"
}

// JSONLFormatter writes one JSON line per task verdict, followed by a
// trailing summary line.
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// jsonlTask is one task line.
type jsonlTask struct {
	Kind  string `json:"kind"`
	RunID string `json:"run_id"`
	verify.TaskVerdict
}

// jsonlSummary is the final line.
type jsonlSummary struct {
	Kind      string        `json:"kind"`
	RunID     string        `json:"run_id"`
	TasksPath string        `json:"tasks_path"`
	Totals    verify.Totals `json:"totals"`
	Exhausted bool          `json:"budget_exhausted,omitempty"`
}

// Format writes r as JSON lines.
func (jf *JSONLFormatter) Format(w io.Writer, r *verify.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	for _, t := range r.Tasks {
		if err := encoder.Encode(jsonlTask{Kind: "task", RunID: r.RunID, TaskVerdict: t}); err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	return encoder.Encode(jsonlSummary{
		Kind:      "summary",
		RunID:     r.RunID,
		TasksPath: r.TasksPath,
		Totals:    r.Totals,
		Exhausted: r.Budget.Exhausted,
	})
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// YAMLFormatter writes the report as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes r as YAML.
func (yf *YAMLFormatter) Format(w io.Writer, r *verify.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Extension returns the file extension for YAML.
func (yf *YAMLFormatter) Extension() string {
	return ".yaml"
}
