package matcher

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/boshu2/hookcheck/internal/budget"
	"github.com/boshu2/hookcheck/internal/hook"
)

// errStopWalk ends a directory walk after the first hit.
var errStopWalk = errors.New("stop walk")

// needle is one content matcher compiled to a regex.
type needle struct {
	key   string
	value string
	re    *regexp.Regexp
}

// hit is the first location that satisfied every needle.
type hit struct {
	rel  string
	line int
	text string
}

// needles compiles the content matchers of h in a fixed order.
func (m *Matcher) needles(h *hook.Hook) ([]needle, error) {
	var ns []needle
	add := func(key, expr string) error {
		re, err := m.compile(expr)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		ns = append(ns, needle{key: key, value: h.Get(key), re: re})
		return nil
	}

	if v := h.Get("symbol"); v != "" {
		if err := add("symbol", SymbolPattern(v)); err != nil {
			return nil, err
		}
	}
	if v := h.Get("heading"); v != "" {
		if err := add("heading", HeadingPattern(v)); err != nil {
			return nil, err
		}
	}
	if v := h.Get("selector"); v != "" && h.Type == hook.TypeUI {
		if err := add("selector", regexp.QuoteMeta(v)); err != nil {
			return nil, err
		}
	}
	if v := h.Get("contains"); v != "" {
		if err := add("contains", regexp.QuoteMeta(v)); err != nil {
			return nil, err
		}
	}
	if v := h.Get("regex"); v != "" {
		if err := add("regex", v); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// SymbolPattern matches an identifier on word boundaries. Boundaries are
// only asserted next to word characters so names like $store still match.
func SymbolPattern(symbol string) string {
	q := regexp.QuoteMeta(symbol)
	first, _ := utf8.DecodeRuneInString(symbol)
	last, _ := utf8.DecodeLastRuneInString(symbol)
	if isWordRune(first) {
		q = `\b` + q
	}
	if isWordRune(last) {
		q += `\b`
	}
	return q
}

// HeadingPattern matches a markdown heading line with the given text,
// case-insensitively.
func HeadingPattern(heading string) string {
	return `(?im)^\s{0,3}#{1,6}\s+` + regexp.QuoteMeta(strings.TrimSpace(heading)) + `\s*#*\s*$`
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchAll reports the offset of the first needle when every needle matches.
func matchAll(data []byte, ns []needle) (int, bool) {
	first := -1
	for i, n := range ns {
		loc := n.re.FindIndex(data)
		if loc == nil {
			return 0, false
		}
		if i == 0 {
			first = loc[0]
		}
	}
	return first, first >= 0
}

// matchContent implements the code, test, and docs matchers.
func (m *Matcher) matchContent(res Result, h *hook.Hook, b *budget.Budget) Result {
	p := h.Get("path")
	r, ok := m.resolve(&res, p)
	if !ok {
		return res
	}
	res.Pointer = r.Rel

	ns, err := m.needles(h)
	if err != nil {
		res.Scope, res.Confidence = ScopeInvalid, Low
		res.Why = err.Error()
		return res
	}
	if err := b.Check(); err != nil {
		return exhausted(res)
	}

	res.Scope = ScopeOK
	info, exists := statPath(r.Abs)
	if !exists {
		res.Confidence = Low
		res.Why = WhyNotFound + ": " + r.Rel
		return res
	}

	if info.IsDir() || r.DirHint {
		if !info.IsDir() {
			res.Confidence = Low
			res.Why = WhyNotFound + ": " + r.Rel + " is not a directory"
			return res
		}
		if len(ns) == 0 {
			res.Scope, res.Confidence = ScopeInvalid, Low
			res.Why = "directory path requires symbol=, contains=, or regex="
			return res
		}
		found, err := m.scanDir(r.Abs, ns, nil, b)
		if errors.Is(err, budget.ErrExhausted) {
			return exhausted(res)
		}
		if found == nil {
			res.Confidence = Low
			res.Why = fmt.Sprintf("no file under %s matched %s", r.Rel, describe(ns))
			return res
		}
		return m.withHit(res, found, ns)
	}

	if len(ns) == 0 {
		res.Matched = true
		res.Confidence = Medium
		res.Why = "file exists (no content matcher)"
		return res
	}

	data, truncated, err := b.ReadFile(r.Abs)
	if errors.Is(err, budget.ErrExhausted) {
		return exhausted(res)
	}
	if err != nil {
		res.Confidence = Low
		res.Why = "read failed: " + err.Error()
		return res
	}
	idx, ok := matchAll(data, ns)
	if !ok {
		res.Confidence = Medium
		res.Why = fmt.Sprintf("file exists but %s not found", describe(ns))
		if truncated {
			res.Why += " (scan truncated)"
		}
		return res
	}
	line, text := lineAt(data, idx)
	return m.withHit(res, &hit{rel: r.Rel, line: line, text: text}, ns)
}

func (m *Matcher) withHit(res Result, h *hit, ns []needle) Result {
	res.Matched = true
	res.Confidence = High
	res.Pointer = fmt.Sprintf("%s:%d", h.rel, h.line)
	res.Excerpt = m.excerpt(h.text)
	res.Why = fmt.Sprintf("%s found", describe(ns))
	return res
}

// scanDir walks root in lexical order and returns the first file where every
// needle matches. exts filters file names when non-empty.
func (m *Matcher) scanDir(root string, ns []needle, exts []string, b *budget.Budget) (*hit, error) {
	var found *hit
	allowLinks := m.sb.Config().AllowSymlinks

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped.
			return nil
		}
		if d.IsDir() {
			if path != root && m.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(m.sb.Root(), path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.Type()&fs.ModeSymlink != 0 {
			if !allowLinks {
				return nil
			}
			if _, err := m.sb.Resolve(rel); err != nil {
				return nil
			}
		}
		if len(exts) > 0 && !hasExt(d.Name(), exts) {
			return nil
		}

		if err := b.CheckFile(); err != nil {
			return err
		}
		b.VisitFile()
		data, _, err := b.ReadFile(path)
		if err != nil {
			if errors.Is(err, budget.ErrExhausted) {
				return err
			}
			return nil
		}
		if idx, ok := matchAll(data, ns); ok {
			line, text := lineAt(data, idx)
			found = &hit{rel: rel, line: line, text: text}
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return nil, err
	}
	return found, nil
}

func describe(ns []needle) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, fmt.Sprintf("%s=%q", n.key, n.value))
	}
	return strings.Join(parts, " ")
}
