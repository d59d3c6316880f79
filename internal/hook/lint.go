package hook

import (
	"errors"
	"strings"

	"github.com/boshu2/hookcheck/internal/safety"
)

// Result is the outcome of checking one hook line without touching the
// filesystem.
type Result struct {
	Line     int      `json:"line" yaml:"line"`
	Raw      string   `json:"raw" yaml:"raw"`
	Valid    bool     `json:"valid" yaml:"valid"`
	Hook     *Hook    `json:"hook,omitempty" yaml:"hook,omitempty"`
	Issues   []string `json:"issues,omitempty" yaml:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Check parses text strictly, applies the string-level path rules, and
// collects lint warnings.
func Check(text string, line int, cfg safety.Config) Result {
	res := Result{Line: line, Raw: strings.TrimSpace(text)}
	h, err := Parse(text)
	if err != nil {
		res.Issues = append(res.Issues, err.Error())
		var pe *ParseError
		if errors.As(err, &pe) && pe.Legacy() {
			res.Issues = append(res.Issues, "run `hookcheck migrate` to convert legacy hooks")
		}
		return res
	}
	h.Line = line
	res.Hook = h

	if p := h.Get("path"); p != "" {
		if _, err := safety.Validate(p, cfg); err != nil {
			res.Issues = append(res.Issues, "path: "+err.Error())
		}
	}
	if h.Type == TypeCode && strings.HasSuffix(strings.TrimSpace(h.Get("path")), "/") && !h.HasMatcher() {
		res.Issues = append(res.Issues, "directory path requires symbol=, contains=, or regex=")
	}
	res.Warnings = Lint(h)
	res.Valid = len(res.Issues) == 0
	return res
}

// Lint returns advisory warnings for a hook that already parsed.
func Lint(h *Hook) []string {
	var warns []string
	if !h.HasMatcher() && !(h.Type == TypeCode && strings.HasSuffix(h.Get("path"), "/")) {
		warns = append(warns, "no matcher key ("+strings.Join(matcherKeys[h.Type], ", ")+"); hook can only reach a medium result")
	}
	if h.Type == TypeTest && h.Has("command") {
		if strings.TrimSpace(h.Get("command")) == "" {
			warns = append(warns, "command= is empty")
		} else {
			warns = append(warns, "command= is recorded but never executed")
		}
		if h.CommandTail {
			warns = append(warns, "command= value has unquoted words; quote it")
		}
	}
	if h.Type == TypeUI && h.Has("component") && !(h.Has("route") && h.Has("states")) {
		warns = append(warns, "ui hook without route= and states= can only reach needs_manual")
	}
	if len(h.Recovered) > 0 {
		warns = append(warns, "stray tokens folded into: "+strings.Join(h.Recovered, ", "))
	}
	return warns
}
