// Package hook implements the evidence hook grammar:
//
//	evidence: <code|test|docs|ui> key=value key="value with spaces" ...
//
// Payloads are tokenized with POSIX shell quoting. Strict parsing is what the
// verifier uses; lenient recovery exists only for the migrator.
package hook

import (
	"sort"
	"strings"
)

// Type is the closed set of evidence kinds.
type Type string

const (
	TypeCode Type = "code"
	TypeTest Type = "test"
	TypeDocs Type = "docs"
	TypeUI   Type = "ui"
)

// Types lists the valid evidence types in canonical order.
var Types = []Type{TypeCode, TypeTest, TypeDocs, TypeUI}

// Valid reports whether t is one of the four evidence types.
func (t Type) Valid() bool {
	_, ok := allowedKeys[t]
	return ok
}

// Prefix is the literal token that introduces an evidence hook.
const Prefix = "evidence:"

var allowedKeys = map[Type]map[string]bool{
	TypeCode: {"path": true, "symbol": true, "contains": true, "regex": true},
	TypeTest: {"path": true, "contains": true, "regex": true, "command": true},
	TypeDocs: {"path": true, "heading": true, "contains": true, "regex": true},
	TypeUI: {"path": true, "screen": true, "selector": true, "contains": true, "regex": true,
		"route": true, "component": true, "states": true},
}

var requiredKey = map[Type]string{
	TypeCode: "path",
	TypeTest: "path",
	TypeDocs: "path",
	TypeUI:   "screen",
}

// matcherKeys are the keys that make a hook more than an existence check.
var matcherKeys = map[Type][]string{
	TypeCode: {"symbol", "contains", "regex"},
	TypeTest: {"contains", "regex"},
	TypeDocs: {"heading", "contains", "regex"},
	TypeUI:   {"component", "selector", "contains", "regex"},
}

// spaceTolerantKeys may absorb stray tokens during lenient recovery.
var spaceTolerantKeys = map[string]bool{
	"command": true, "contains": true, "regex": true,
	"heading": true, "selector": true, "symbol": true,
}

// keyOrder fixes the order keys are rendered in canonical form.
var keyOrder = []string{
	"path", "screen", "symbol", "heading", "selector", "component",
	"route", "states", "contains", "regex", "command",
}

// knownKeys is the union of every type's allowed keys.
var knownKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, keys := range allowedKeys {
		for k := range keys {
			m[k] = true
		}
	}
	return m
}()

// legacyTypes is vocabulary from older hook formats. Such hooks are never
// verified; the migrator rewrites them.
var legacyTypes = map[string]bool{
	"file_exists":   true,
	"test_exists":   true,
	"api_route":     true,
	"db_schema":     true,
	"command":       true,
	"file_contains": true,
	"config_key":    true,
	"gh_commit":     true,
}

// IsLegacyType reports whether t is a known pre-grammar evidence type.
func IsLegacyType(t string) bool {
	return legacyTypes[strings.ToLower(strings.TrimSpace(t))]
}

// AllowedKeys returns the sorted keys valid for t.
func AllowedKeys(t Type) []string {
	keys := make([]string, 0, len(allowedKeys[t]))
	for k := range allowedKeys[t] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RequiredKey returns the key every hook of type t must carry.
func RequiredKey(t Type) string {
	return requiredKey[t]
}

// Hook is one parsed evidence hook.
type Hook struct {
	Type   Type              `json:"type" yaml:"type"`
	Params map[string]string `json:"params" yaml:"params"`
	Raw    string            `json:"raw" yaml:"raw"`
	Line   int               `json:"line,omitempty" yaml:"line,omitempty"`

	// CommandTail is set when unquoted words after command= were folded into
	// the recorded command.
	CommandTail bool `json:"command_tail,omitempty" yaml:"command_tail,omitempty"`

	// Recovered lists keys that absorbed stray tokens in lenient mode.
	Recovered []string `json:"recovered,omitempty" yaml:"recovered,omitempty"`
}

// Get returns the value of key, or "" when absent.
func (h *Hook) Get(key string) string {
	if h == nil || h.Params == nil {
		return ""
	}
	return h.Params[key]
}

// Has reports whether key is present.
func (h *Hook) Has(key string) bool {
	if h == nil || h.Params == nil {
		return false
	}
	_, ok := h.Params[key]
	return ok
}

// HasMatcher reports whether the hook carries a content matcher for its type.
func (h *Hook) HasMatcher() bool {
	for _, k := range matcherKeys[h.Type] {
		if h.Get(k) != "" {
			return true
		}
	}
	return false
}

// Anchor returns the value the sandbox resolves: path, or screen for ui hooks
// without a path.
func (h *Hook) Anchor() string {
	if p := h.Get("path"); p != "" {
		return p
	}
	if h.Type == TypeUI {
		return h.Get("screen")
	}
	return ""
}

// Equal reports whether two hooks carry the same type and parameters.
func (h *Hook) Equal(o *Hook) bool {
	if h == nil || o == nil {
		return h == o
	}
	if h.Type != o.Type || len(h.Params) != len(o.Params) {
		return false
	}
	for k, v := range h.Params {
		if ov, ok := o.Params[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
