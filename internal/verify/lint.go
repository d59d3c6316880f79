package verify

import (
	"sort"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/safety"
)

// LintEntry is the lint result for one evidence line.
type LintEntry struct {
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	hook.Result
}

// LintReport is the outcome of checking every evidence line of a document
// without touching the filesystem beyond the document itself.
type LintReport struct {
	TasksPath        string                    `json:"tasks_path" yaml:"tasks_path"`
	Hooks            []LintEntry               `json:"hooks" yaml:"hooks"`
	Legacy           []parser.LegacyMarker     `json:"legacy,omitempty" yaml:"legacy,omitempty"`
	StructuralErrors []*parser.StructuralError `json:"structural_errors,omitempty" yaml:"structural_errors,omitempty"`

	Total   int `json:"total" yaml:"total"`
	Valid   int `json:"valid" yaml:"valid"`
	Invalid int `json:"invalid" yaml:"invalid"`
	Warned  int `json:"warned" yaml:"warned"`
}

// Failed reports whether any hook is invalid, or any structural error exists
// when strict is set.
func (r *LintReport) Failed(strict bool) bool {
	return r.Invalid > 0 || (strict && len(r.StructuralErrors) > 0)
}

// InvalidEntries returns the entries that failed to validate.
func (r *LintReport) InvalidEntries() []LintEntry {
	var out []LintEntry
	for _, e := range r.Hooks {
		if !e.Valid {
			out = append(out, e)
		}
	}
	return out
}

// Lint checks every evidence line in doc, including evidence outside task
// blocks, in line order.
func Lint(doc *parser.Document, cfg safety.Config) *LintReport {
	rep := &LintReport{
		TasksPath:        doc.Path,
		StructuralErrors: doc.StructuralErrors,
	}
	for _, t := range doc.Tasks {
		for _, ev := range t.Evidence {
			rep.Hooks = append(rep.Hooks, LintEntry{TaskID: t.ID, Result: hook.Check(ev.Text, ev.Line, cfg)})
		}
		rep.Legacy = append(rep.Legacy, t.Legacy...)
	}
	for _, ev := range doc.Orphans {
		res := hook.Check(ev.Text, ev.Line, cfg)
		res.Warnings = append(res.Warnings, WhyOrphan)
		rep.Hooks = append(rep.Hooks, LintEntry{Result: res})
	}
	sort.SliceStable(rep.Hooks, func(i, j int) bool { return rep.Hooks[i].Line < rep.Hooks[j].Line })

	for _, e := range rep.Hooks {
		rep.Total++
		if e.Valid {
			rep.Valid++
		} else {
			rep.Invalid++
		}
		if len(e.Warnings) > 0 {
			rep.Warned++
		}
	}
	return rep
}
