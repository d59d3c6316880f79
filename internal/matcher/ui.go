package matcher

import (
	"errors"
	"fmt"

	"github.com/boshu2/hookcheck/internal/budget"
	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/safety"
)

// WhyManualUI is reported for ui hooks that cannot be proven statically.
const WhyManualUI = "UI evidence requires manual verification"

// matchUI looks for the component in conventional UI roots. Only a found
// component with both route= and states= counts as proof; anything less is
// left for a human.
func (m *Matcher) matchUI(res Result, h *hook.Hook, b *budget.Budget) Result {
	var roots []safety.Resolved
	if p := h.Get("path"); p != "" {
		r, ok := m.resolve(&res, p)
		if !ok {
			return res
		}
		roots = append(roots, r)
	} else if err := checkScreen(h.Get("screen")); err != nil {
		res.Scope = ScopeInvalidScope
		res.ScopeKind = safety.KindOf(err)
		res.Confidence = Low
		res.Why = "screen: " + err.Error()
		return res
	}

	component := h.Get("component")
	if component == "" {
		res.Scope = ScopeNeedsManual
		res.Confidence = Low
		res.Why = WhyManualUI + " (no component=)"
		res.Pointer = h.Get("screen")
		return res
	}

	extra, err := m.needles(h)
	if err != nil {
		res.Scope, res.Confidence = ScopeInvalid, Low
		res.Why = err.Error()
		return res
	}
	compRe, err := m.compile(SymbolPattern(component))
	if err != nil {
		res.Scope, res.Confidence = ScopeInvalid, Low
		res.Why = "invalid component: " + err.Error()
		return res
	}
	ns := append([]needle{{key: "component", value: component, re: compRe}}, extra...)

	if err := b.Check(); err != nil {
		return exhausted(res)
	}

	if len(roots) == 0 {
		for _, root := range m.opts.UIRoots {
			r, err := m.sb.Resolve(root)
			if err != nil {
				continue
			}
			roots = append(roots, r)
		}
	}

	var found *hit
	for _, r := range roots {
		info, ok := statPath(r.Abs)
		if !ok {
			continue
		}
		if info.IsDir() {
			found, err = m.scanDir(r.Abs, ns, m.opts.UIExtensions, b)
		} else {
			found, err = m.scanFile(r, ns, b)
		}
		if errors.Is(err, budget.ErrExhausted) {
			return exhausted(res)
		}
		if found != nil {
			break
		}
	}

	if found == nil {
		res.Scope = ScopeNeedsManual
		res.Confidence = Low
		res.Why = fmt.Sprintf("%s (component %q not found in UI sources)", WhyManualUI, component)
		return res
	}

	res = m.withHit(res, found, ns)
	if h.Get("route") != "" && h.Get("states") != "" {
		res.Scope = ScopeOK
		return res
	}
	res.Scope = ScopeNeedsManual
	res.Confidence = Medium
	res.Why = fmt.Sprintf("%s (component found; route= and states= needed for proof)", WhyManualUI)
	return res
}

// scanFile checks a single UI file.
func (m *Matcher) scanFile(r safety.Resolved, ns []needle, b *budget.Budget) (*hit, error) {
	data, _, err := b.ReadFile(r.Abs)
	if err != nil {
		if errors.Is(err, budget.ErrExhausted) {
			return nil, err
		}
		return nil, nil
	}
	idx, ok := matchAll(data, ns)
	if !ok {
		return nil, nil
	}
	line, text := lineAt(data, idx)
	return &hit{rel: r.Rel, line: line, text: text}, nil
}

// checkScreen applies the absolute and traversal rules to a screen label.
// Other path rules do not apply: "Login Page" is a valid screen.
func checkScreen(screen string) error {
	_, err := safety.Validate(screen, safety.Config{})
	switch safety.KindOf(err) {
	case safety.KindAbsolutePath, safety.KindTraversal:
		return err
	}
	return nil
}
