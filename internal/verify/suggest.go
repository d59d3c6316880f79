package verify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/matcher"
	"github.com/boshu2/hookcheck/internal/migrate"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/safety"
)

var (
	titlePathRe   = regexp.MustCompile("`([^`]+)`")
	titleSymbolRe = regexp.MustCompile(`\b(\w+(?:Service|Client|Model|Controller|Handler|Util))\b`)
)

// suggest builds replacement hooks for a task that did not verify.
func (v *Verifier) suggest(task parser.TaskBlock, results []matcher.Result) []string {
	limit := v.sb.Config().Limits.MaxSuggestions
	if limit <= 0 {
		limit = safety.DefaultMaxSuggestions
	}
	var raw []string
	for _, r := range results {
		if r.Suggestion != "" {
			raw = append(raw, r.Suggestion)
		}
	}
	for _, mk := range task.Legacy {
		if mk.Kind == parser.LegacyBoldID {
			continue
		}
		if c, _, ok := v.mig.ConvertLegacy(mk.Text); ok && c.Status.Changed() {
			raw = append(raw, c.Text)
		}
	}
	raw = append(raw, TitleSuggestions(task.ID, task.Title)...)
	return FilterSuggestions(raw, v.sb.Config(), limit)
}

// TitleSuggestions derives hooks from a task's ID and title: a backticked
// path becomes a code hook (with a symbol when the title names one), and a
// unit test named after the ID is always proposed.
func TitleSuggestions(id, title string) []string {
	var out []string
	if m := titlePathRe.FindStringSubmatch(title); m != nil {
		p := strings.TrimSpace(m[1])
		t := migrate.ClassifyPath(p)
		out = append(out, fmt.Sprintf("%s %s path=%s", hook.Prefix, t, hook.Quote(p)))
		if sm := titleSymbolRe.FindStringSubmatch(title); sm != nil && t == hook.TypeCode {
			out = append(out, fmt.Sprintf("%s code path=%s symbol=%s", hook.Prefix, hook.Quote(p), sm[1]))
		}
	}
	base := strings.ReplaceAll(strings.Replace(strings.ToLower(id), "tsk-", "", 1), "-", "_")
	out = append(out, fmt.Sprintf("%s test path=tests/unit/%s.test.ts contains=%s", hook.Prefix, base, hook.Quote(id)))
	return out
}

// FilterSuggestions keeps suggestions that parse strictly and pass the path
// rules, renders them canonically, and drops duplicates, up to limit.
func FilterSuggestions(raw []string, cfg safety.Config, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range raw {
		if len(out) >= limit {
			break
		}
		h, err := hook.Parse(s)
		if err != nil {
			continue
		}
		if p := h.Get("path"); p != "" {
			if _, err := safety.Validate(p, cfg); err != nil {
				continue
			}
		}
		canon := hook.Format(h)
		if seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return out
}
