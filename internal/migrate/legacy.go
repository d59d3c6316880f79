package migrate

import (
	"fmt"
	"path"
	"strings"

	"github.com/boshu2/hookcheck/internal/hook"
)

var testPathMarkers = []string{".test.", ".spec.", "_test.", "/tests/", "/test/", "/__tests__/"}

var docExtensions = map[string]bool{".md": true, ".mdx": true, ".rst": true, ".txt": true, ".adoc": true}

// ClassifyPath picks the hook type for a bare file reference: test files by
// name or directory, documents by extension, code otherwise.
func ClassifyPath(p string) hook.Type {
	lower := "/" + strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	for _, marker := range testPathMarkers {
		if strings.Contains(lower, marker) {
			return hook.TypeTest
		}
	}
	if docExtensions[path.Ext(lower)] {
		return hook.TypeDocs
	}
	return hook.TypeCode
}

// first returns the first non-empty value among keys.
func first(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(params[k]); v != "" {
			return v
		}
	}
	return ""
}

// fromLegacy maps the older hook vocabulary onto the four current types.
func (m *Migrator) fromLegacy(input, payload string, pe *hook.ParseError) Candidate {
	params := pe.Params
	reason := "converted legacy " + pe.Type

	switch pe.Type {
	case "file_exists":
		p := first(params, "path", "file")
		if p == "" {
			break
		}
		h := newHook(ClassifyPath(p), "path", p)
		return m.finish(input, h, StatusRewritten, reason)

	case "test_exists":
		p := first(params, "path", "file")
		if p == "" {
			break
		}
		h := newHook(hook.TypeTest, "path", p)
		if name := first(params, "name", "contains"); name != "" {
			h.Params["contains"] = name
		}
		return m.finish(input, h, StatusRewritten, reason)

	case "api_route":
		route := first(params, "path", "route")
		if route == "" {
			break
		}
		if file := first(params, "file"); file != "" {
			h := newHook(hook.TypeCode, "path", file, "contains", route)
			return m.finish(input, h, StatusRewritten, reason)
		}
		return m.anchored(input, reason, routeAnchors, route)

	case "db_schema":
		table := first(params, "table", "name", "contains")
		if table == "" {
			break
		}
		if file := first(params, "file", "path"); file != "" {
			h := newHook(hook.TypeCode, "path", file, "contains", table)
			return m.finish(input, h, StatusRewritten, reason)
		}
		return m.anchored(input, reason, schemaAnchors, table)

	case "file_contains":
		p := first(params, "path", "file")
		content := first(params, "content", "contains", "text")
		if p == "" || content == "" {
			break
		}
		h := newHook(hook.TypeCode, "path", p, "contains", content)
		return m.finish(input, h, StatusRewritten, reason)

	case "config_key":
		p := first(params, "file", "path")
		key := first(params, "key", "contains")
		if p == "" || key == "" {
			break
		}
		h := newHook(hook.TypeCode, "path", p, "contains", key)
		return m.finish(input, h, StatusRewritten, reason)

	case "command":
		cmd := first(params, "cmd", "command")
		if cmd == "" {
			cmd = strings.Join(pe.Stray, " ")
		}
		if cmd == "" {
			break
		}
		return m.wrapCommand(input, cmd, reason)
	}

	return m.describe(input, payload, reason+" without a usable path")
}

// anchored builds a code hook searching for needle under the first existing
// anchor.
func (m *Migrator) anchored(input, reason string, anchors []string, needle string) Candidate {
	anchor, found := m.pickAnchor(anchors)
	h := newHook(hook.TypeCode, "path", anchor, "contains", needle)
	if !found {
		return m.finish(input, h, StatusNeedsReview,
			fmt.Sprintf("%s (no anchor found; tried %s)", reason, strings.Join(anchors, ", ")))
	}
	return m.finish(input, h, StatusRewritten, reason+" anchored at "+anchor)
}

func newHook(t hook.Type, kv ...string) *hook.Hook {
	h := &hook.Hook{Type: t, Params: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Params[kv[i]] = kv[i+1]
	}
	return h
}
