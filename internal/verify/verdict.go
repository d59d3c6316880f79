package verify

import (
	"time"

	"github.com/boshu2/hookcheck/internal/budget"
	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/matcher"
	"github.com/boshu2/hookcheck/internal/parser"
)

// Status is the verdict for one task.
type Status string

const (
	StatusVerified     Status = "verified"
	StatusNotVerified  Status = "not_verified"
	StatusNeedsManual  Status = "needs_manual"
	StatusMissingHooks Status = "missing_hooks"
	StatusInvalidScope Status = "invalid_scope"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusVerified, StatusNotVerified, StatusNeedsManual, StatusMissingHooks, StatusInvalidScope}

// Why strings per status.
const (
	WhyVerified     = "Evidence hooks satisfied"
	WhyMissingHooks = "No evidence hooks found"
	WhyNeedsManual  = "UI evidence requires manual verification"
	WhyInvalidScope = "Evidence points outside workspace"
	WhyNotVerified  = "Evidence hooks not satisfied"
)

// Workflow names the run in reports.
const Workflow = "verify_evidence"

// Policy tunes classification.
type Policy struct {
	// MediumAsVerified lists hook types whose matched medium results count
	// as verified. Empty by default.
	MediumAsVerified []hook.Type `json:"medium_as_verified,omitempty" yaml:"medium_as_verified,omitempty"`
}

func (p Policy) mediumVerifies(t string) bool {
	for _, mt := range p.MediumAsVerified {
		if string(mt) == t {
			return true
		}
	}
	return false
}

// TaskVerdict is the outcome for one task.
type TaskVerdict struct {
	ID         string             `json:"task_id" yaml:"task_id"`
	Title      string             `json:"title" yaml:"title"`
	Line       int                `json:"line" yaml:"line"`
	Section    string             `json:"section,omitempty" yaml:"section,omitempty"`
	Checked    bool               `json:"checked" yaml:"checked"`
	Status     Status             `json:"status" yaml:"status"`
	Confidence matcher.Confidence `json:"confidence" yaml:"confidence"`
	Why        string             `json:"why" yaml:"why"`
	Evidence   []matcher.Result   `json:"evidence" yaml:"evidence"`

	SuggestedHooks []string              `json:"suggested_hooks,omitempty" yaml:"suggested_hooks,omitempty"`
	Legacy         []parser.LegacyMarker `json:"legacy,omitempty" yaml:"legacy,omitempty"`

	// CheckboxDrift is set when the task is checked but not verified.
	CheckboxDrift bool `json:"checkbox_drift,omitempty" yaml:"checkbox_drift,omitempty"`
}

// Totals counts verdicts across a run.
type Totals struct {
	Tasks         int `json:"tasks" yaml:"tasks"`
	Verified      int `json:"verified" yaml:"verified"`
	NotVerified   int `json:"not_verified" yaml:"not_verified"`
	NeedsManual   int `json:"needs_manual" yaml:"needs_manual"`
	MissingHooks  int `json:"missing_hooks" yaml:"missing_hooks"`
	InvalidScope  int `json:"invalid_scope" yaml:"invalid_scope"`
	Evidence      int `json:"evidence" yaml:"evidence"`
	InvalidHooks  int `json:"invalid_hooks" yaml:"invalid_hooks"`
	LegacyHooks   int `json:"legacy_hooks" yaml:"legacy_hooks"`
	CheckboxDrift int `json:"checkbox_drift" yaml:"checkbox_drift"`
}

// Count returns the number of tasks with status s.
func (t Totals) Count(s Status) int {
	switch s {
	case StatusVerified:
		return t.Verified
	case StatusNotVerified:
		return t.NotVerified
	case StatusNeedsManual:
		return t.NeedsManual
	case StatusMissingHooks:
		return t.MissingHooks
	case StatusInvalidScope:
		return t.InvalidScope
	}
	return 0
}

func (t *Totals) add(v TaskVerdict) {
	t.Tasks++
	switch v.Status {
	case StatusVerified:
		t.Verified++
	case StatusNotVerified:
		t.NotVerified++
	case StatusNeedsManual:
		t.NeedsManual++
	case StatusMissingHooks:
		t.MissingHooks++
	case StatusInvalidScope:
		t.InvalidScope++
	}
	t.Evidence += len(v.Evidence)
	for _, r := range v.Evidence {
		if r.Scope == matcher.ScopeInvalid {
			t.InvalidHooks++
		}
		if r.Suggestion != "" {
			t.LegacyHooks++
		}
	}
	if v.CheckboxDrift {
		t.CheckboxDrift++
	}
}

// NextStep is a follow-up command with the reason to run it.
type NextStep struct {
	Command string `json:"cmd" yaml:"cmd"`
	Why     string `json:"why" yaml:"why"`
}

// Report is the result of one verification run.
type Report struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Workflow    string    `json:"workflow" yaml:"workflow"`
	Version     string    `json:"version" yaml:"version"`
	TasksPath   string    `json:"tasks_path" yaml:"tasks_path"`
	ProjectRoot string    `json:"project_root" yaml:"project_root"`
	SpecID      string    `json:"spec_id" yaml:"spec_id"`
	Checksum    string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`

	Policy Policy          `json:"policy" yaml:"policy"`
	Totals Totals          `json:"totals" yaml:"totals"`
	Budget budget.Snapshot `json:"budget" yaml:"budget"`

	Tasks            []TaskVerdict             `json:"results" yaml:"results"`
	StructuralErrors []*parser.StructuralError `json:"structural_errors,omitempty" yaml:"structural_errors,omitempty"`
	Orphans          []matcher.Result          `json:"orphans,omitempty" yaml:"orphans,omitempty"`
	NextSteps        []NextStep                `json:"next_steps,omitempty" yaml:"next_steps,omitempty"`
}

// TasksWith returns the verdicts with status s in document order.
func (r *Report) TasksWith(s Status) []TaskVerdict {
	var out []TaskVerdict
	for _, t := range r.Tasks {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}

// Failed reports whether the run should exit non-zero: any invalid_scope
// task, or structural errors when strict is set.
func (r *Report) Failed(strict bool) bool {
	if r.Totals.InvalidScope > 0 {
		return true
	}
	return strict && len(r.StructuralErrors) > 0
}
