// Package matcher resolves evidence hooks against a project tree.
//
// Every filesystem access goes through a safety.Sandbox and every read is
// charged to the run's budget.Budget. Matchers never execute anything; a test
// hook's command is copied into the result verbatim.
package matcher

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/budget"
	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/safety"
)

// DefaultRegexCacheSize bounds the compiled-regex cache.
const DefaultRegexCacheSize = 256

// DefaultUIRoots are the conventional UI source roots scanned for components.
var DefaultUIRoots = []string{"src", "app", "apps", "pages", "components", "web", "client/src", "frontend", "ui"}

// DefaultUIExtensions are the file extensions scanned for components.
var DefaultUIExtensions = []string{".tsx", ".jsx", ".ts", ".js", ".vue", ".svelte", ".html"}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", "node_modules"}

// Options configures a Matcher.
type Options struct {
	// MaxExcerptChars bounds excerpts copied into results.
	MaxExcerptChars int

	// UIRoots overrides DefaultUIRoots.
	UIRoots []string

	// UIExtensions overrides DefaultUIExtensions.
	UIExtensions []string

	// SkipDirs overrides DefaultSkipDirs.
	SkipDirs []string

	// RegexCacheSize overrides DefaultRegexCacheSize.
	RegexCacheSize int

	Logger *zap.Logger
}

// Matcher evaluates hooks for one project root.
type Matcher struct {
	sb      *safety.Sandbox
	opts    Options
	regexes *lru.Cache[string, *regexp.Regexp]
	log     *zap.Logger
}

// New creates a Matcher bound to sb.
func New(sb *safety.Sandbox, opts Options) (*Matcher, error) {
	if sb == nil {
		return nil, errors.New("matcher: nil sandbox")
	}
	if opts.MaxExcerptChars == 0 {
		opts.MaxExcerptChars = safety.DefaultMaxExcerptChars
	}
	if len(opts.UIRoots) == 0 {
		opts.UIRoots = DefaultUIRoots
	}
	if len(opts.UIExtensions) == 0 {
		opts.UIExtensions = DefaultUIExtensions
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}
	size := opts.RegexCacheSize
	if size <= 0 {
		size = DefaultRegexCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("create regex cache: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{sb: sb, opts: opts, regexes: cache, log: log}, nil
}

// Sandbox returns the sandbox the matcher reads through.
func (m *Matcher) Sandbox() *safety.Sandbox { return m.sb }

// Match resolves h. The budget is shared by every call in one run.
func (m *Matcher) Match(h *hook.Hook, b *budget.Budget) Result {
	base := Result{Type: string(h.Type), Raw: h.Raw, Line: h.Line}
	if h.Type == hook.TypeTest {
		base.Command = h.Get("command")
	}

	var res Result
	switch h.Type {
	case hook.TypeCode, hook.TypeTest, hook.TypeDocs:
		res = m.matchContent(base, h, b)
	case hook.TypeUI:
		res = m.matchUI(base, h, b)
	default:
		res = base
		res.Scope, res.Confidence = ScopeInvalid, Low
		res.Why = fmt.Sprintf("unsupported evidence type %q", h.Type)
	}

	m.log.Debug("evidence matched",
		zap.String("type", res.Type),
		zap.Int("line", res.Line),
		zap.Bool("matched", res.Matched),
		zap.String("scope", string(res.Scope)),
		zap.String("confidence", string(res.Confidence)),
		zap.String("pointer", res.Pointer))
	return res
}

// resolve maps a hook path through the sandbox. ok is false when res already
// holds the scope failure.
func (m *Matcher) resolve(res *Result, p string) (safety.Resolved, bool) {
	r, err := m.sb.Resolve(p)
	if err != nil {
		res.Scope = ScopeInvalidScope
		res.ScopeKind = safety.KindOf(err)
		res.Confidence = Low
		var se *safety.ScopeError
		if errors.As(err, &se) {
			res.Why = se.Reason
		} else {
			res.Why = err.Error()
		}
		res.Pointer = p
		return safety.Resolved{}, false
	}
	return r, true
}

// exhausted fills res for a budget failure.
func exhausted(res Result) Result {
	res.Matched = false
	res.Scope = ScopeOK
	res.Confidence = Low
	res.Why = WhyBudgetExceeded
	res.Excerpt = ""
	return res
}

// compile returns a cached compiled regex.
func (m *Matcher) compile(expr string) (*regexp.Regexp, error) {
	if re, ok := m.regexes.Get(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	m.regexes.Add(expr, re)
	return re, nil
}

func (m *Matcher) skipDir(name string) bool {
	for _, d := range m.opts.SkipDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (m *Matcher) excerpt(line string) string {
	return Excerpt(line, m.opts.MaxExcerptChars)
}

func statPath(abs string) (os.FileInfo, bool) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false
	}
	return info, true
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, strings.ToLower(e)) {
			return true
		}
	}
	return false
}
