package matcher

import (
	"github.com/boshu2/hookcheck/internal/safety"
)

// Scope classifies whether a hook could be evaluated at all.
type Scope string

const (
	ScopeOK           Scope = "ok"
	ScopeInvalid      Scope = "invalid"
	ScopeInvalidScope Scope = "invalid_scope"
	ScopeNeedsManual  Scope = "needs_manual"
)

// Confidence is the strength of a match.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

// Rank orders confidences: low < medium < high.
func (c Confidence) Rank() int {
	switch c {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}

// MaxConfidence returns the higher of a and b.
func MaxConfidence(a, b Confidence) Confidence {
	if b.Rank() > a.Rank() {
		return b
	}
	if a == "" {
		return Low
	}
	return a
}

// Why strings shared with the verifier.
const (
	WhyBudgetExceeded = "scan budget exceeded"
	WhyNotFound       = "not found"
)

// Result is the outcome of resolving one hook.
type Result struct {
	Type       string      `json:"type" yaml:"type"`
	Raw        string      `json:"raw" yaml:"raw"`
	Line       int         `json:"line,omitempty" yaml:"line,omitempty"`
	Matched    bool        `json:"matched" yaml:"matched"`
	Scope      Scope       `json:"scope" yaml:"scope"`
	ScopeKind  safety.Kind `json:"scope_kind,omitempty" yaml:"scope_kind,omitempty"`
	Confidence Confidence  `json:"confidence" yaml:"confidence"`
	Why        string      `json:"why" yaml:"why"`
	Pointer    string      `json:"pointer,omitempty" yaml:"pointer,omitempty"`
	Excerpt    string      `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`

	// Command is the test hook's command, recorded and never run.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Suggestion is a conversion hint for hooks the verifier rejected.
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Invalid builds the result for a hook that failed to parse.
func Invalid(raw string, line int, why string) Result {
	return Result{
		Type:       "invalid",
		Raw:        raw,
		Line:       line,
		Scope:      ScopeInvalid,
		Confidence: Low,
		Why:        why,
	}
}
