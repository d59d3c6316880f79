package hook

import (
	"sort"
	"strings"
)

// Format renders h in canonical form: "evidence: <type>" followed by keys in
// fixed order, with values double-quoted only when needed. Parsing the result
// yields the same type and parameters.
func Format(h *Hook) string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteByte(' ')
	b.WriteString(string(h.Type))
	for _, k := range orderedKeys(h.Params) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Quote(h.Params[k]))
	}
	return b.String()
}

// orderedKeys returns keys in canonical order, unknown keys last and sorted.
func orderedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	seen := make(map[string]bool, len(params))
	for _, k := range keyOrder {
		if _, ok := params[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range params {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Quote returns v as a shell word, double-quoting it when it holds anything
// outside a conservative safe set.
func Quote(v string) string {
	if v == "" {
		return `""`
	}
	if strings.IndexFunc(v, needsQuote) < 0 {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-./:@%+,=", r)
}
