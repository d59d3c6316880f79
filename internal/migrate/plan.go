package migrate

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/parser"
)

// HookSource produces a hook payload for a task that has none. Its output is
// untrusted and goes through Canonicalize like any other payload.
type HookSource interface {
	Suggest(ctx context.Context, task parser.TaskBlock) (string, error)
}

// Change is one staged rewrite.
type Change struct {
	Line   int    `json:"line" yaml:"line"`
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Old    string `json:"old" yaml:"old"`
	New    string `json:"new" yaml:"new"`
	Status Status `json:"status" yaml:"status"`
	Reason string `json:"reason" yaml:"reason"`

	// Inserted is set for hooks added after the task line.
	Inserted bool `json:"inserted,omitempty" yaml:"inserted,omitempty"`
}

// Rejection is a payload the migrator could not repair. Its line is left
// unchanged.
type Rejection struct {
	Line    int    `json:"line" yaml:"line"`
	TaskID  string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Payload string `json:"payload" yaml:"payload"`
	Reason  string `json:"reason" yaml:"reason"`
}

// Plan holds every staged change to one document.
type Plan struct {
	Path     string      `json:"path" yaml:"path"`
	Original string      `json:"-" yaml:"-"`
	Updated  string      `json:"-" yaml:"-"`
	Changes  []Change    `json:"changes" yaml:"changes"`
	Rejected []Rejection `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Diff     string      `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return p.Original == p.Updated
}

// NeedsReview counts changes a human should look at.
func (p *Plan) NeedsReview() int {
	n := 0
	for _, c := range p.Changes {
		if c.Status == StatusNeedsReview {
			n++
		}
	}
	return n
}

var (
	headerLineRe = regexp.MustCompile(`(?i)^(\s*(?:[-*]\s+)?)\*\*evidence(?:\s+hooks)?:?\*\*:?\s*(.*?)\s*$`)
	typeBulletRe = regexp.MustCompile(`^(\s*[-*]\s+)(?:\*\*)?(Code|Test|Tests|Docs|UI)(?:\*\*)?\s*:(?:\*\*)?\s+(.+?)\s*$`)
)

// Plan stages the rewrites for doc. src may be nil; when set it is asked for
// a hook for every task that still has no evidence.
func (m *Migrator) Plan(ctx context.Context, doc *parser.Document, src HookSource) (*Plan, error) {
	lines := make([]string, len(doc.Lines))
	copy(lines, doc.Lines)
	plan := &Plan{Path: doc.Path, Original: doc.Text()}

	byLine := make(map[int][]string)
	owner := make(map[int]string)
	var order []int
	addEvidence := func(taskID string, evs []parser.EvidenceLine) {
		for _, ev := range evs {
			if _, seen := byLine[ev.Line]; !seen {
				order = append(order, ev.Line)
				owner[ev.Line] = taskID
			}
			byLine[ev.Line] = append(byLine[ev.Line], ev.Text)
		}
	}
	for _, t := range doc.Tasks {
		addEvidence(t.ID, t.Evidence)
	}
	addEvidence("", doc.Orphans)
	sort.Ints(order)

	for _, ln := range order {
		m.planEvidenceLine(plan, lines, ln, owner[ln], byLine[ln])
	}

	var inserts []insertion
	for _, t := range doc.Tasks {
		converted := 0
		for _, mk := range t.Legacy {
			if mk.Kind == parser.LegacyBoldID {
				m.planBoldID(plan, lines, t, mk)
				continue
			}
			if m.planLegacyLine(plan, lines, t.ID, mk) {
				converted++
			}
		}
		if src == nil || len(t.Evidence) > 0 || converted > 0 {
			continue
		}
		ins, err := m.suggest(ctx, plan, src, t, lines)
		if err != nil {
			return nil, err
		}
		if ins != nil {
			inserts = append(inserts, *ins)
		}
	}

	sort.SliceStable(plan.Changes, func(i, j int) bool { return plan.Changes[i].Line < plan.Changes[j].Line })

	// Insert bottom-up so earlier indices stay valid.
	for i := len(inserts) - 1; i >= 0; i-- {
		ins := inserts[i]
		lines = append(lines[:ins.after], append([]string{ins.text}, lines[ins.after:]...)...)
	}

	plan.Updated = strings.Join(lines, "\n")
	if doc.TrailingNewline {
		plan.Updated += "\n"
	}
	if !plan.Empty() {
		name := filepath.ToSlash(doc.Path)
		if name == "" {
			name = "tasks.md"
		}
		plan.Diff = UnifiedDiff("a/"+name, "b/"+name, plan.Original, plan.Updated)
	}

	m.log.Info("migration planned",
		zap.String("path", doc.Path),
		zap.Int("changes", len(plan.Changes)),
		zap.Int("needs_review", plan.NeedsReview()),
		zap.Int("rejected", len(plan.Rejected)))
	return plan, nil
}

// planEvidenceLine canonicalizes every evidence segment on one line.
func (m *Migrator) planEvidenceLine(plan *Plan, lines []string, ln int, taskID string, payloads []string) {
	repl := make([]string, len(payloads))
	changed := false
	for i, payload := range payloads {
		c := m.Canonicalize(payload)
		switch {
		case c.Status == StatusRejected:
			plan.Rejected = append(plan.Rejected, Rejection{Line: ln, TaskID: taskID, Payload: payload, Reason: c.Reason})
		case c.Status.Changed():
			repl[i] = strings.TrimPrefix(c.Text, hook.Prefix+" ")
			changed = true
			plan.Changes = append(plan.Changes, Change{
				Line: ln, TaskID: taskID, Old: payload, New: c.Text, Status: c.Status, Reason: c.Reason,
			})
		}
	}
	if changed {
		lines[ln-1] = rewriteSegments(lines[ln-1], repl)
	}
}

// planLegacyLine rewrites an evidence header with inline text or a typed
// bullet. It reports whether the line was converted.
func (m *Migrator) planLegacyLine(plan *Plan, lines []string, taskID string, mk parser.LegacyMarker) bool {
	idx := mk.Line - 1
	if idx < 0 || idx >= len(lines) {
		return false
	}
	raw, cr := splitCR(lines[idx])
	c, prefix, ok := m.ConvertLegacy(raw)
	if !ok {
		return false
	}

	if !c.Status.Changed() {
		plan.Rejected = append(plan.Rejected, Rejection{Line: mk.Line, TaskID: taskID, Payload: strings.TrimSpace(raw), Reason: c.Reason})
		return false
	}
	if prefix == "" {
		prefix = "- "
	}
	lines[idx] = prefix + c.Text + cr
	plan.Changes = append(plan.Changes, Change{
		Line: mk.Line, TaskID: taskID, Old: strings.TrimSpace(raw), New: c.Text, Status: c.Status, Reason: c.Reason,
	})
	return true
}

// ConvertLegacy converts an evidence header with inline text or a typed
// bullet such as "- Code: src/x.ts". prefix is the line's indentation and list
// marker. ok is false when line is neither.
func (m *Migrator) ConvertLegacy(line string) (c Candidate, prefix string, ok bool) {
	if sm := headerLineRe.FindStringSubmatch(line); sm != nil {
		if sm[2] == "" {
			return Candidate{}, "", false
		}
		return m.Canonicalize(sm[2]), sm[1], true
	}
	if sm := typeBulletRe.FindStringSubmatch(line); sm != nil {
		return m.convertBullet(sm[2], sm[3]), sm[1], true
	}
	return Candidate{}, "", false
}

// planBoldID drops the emphasis around a task ID on its task line.
func (m *Migrator) planBoldID(plan *Plan, lines []string, t parser.TaskBlock, mk parser.LegacyMarker) {
	idx := mk.Line - 1
	if idx < 0 || idx >= len(lines) {
		return
	}
	for _, mark := range []string{"**", "__"} {
		for _, bolded := range []string{mark + t.ID + mark, mark + t.ID + ":" + mark} {
			if !strings.Contains(lines[idx], bolded) {
				continue
			}
			old := strings.TrimSpace(strings.TrimSuffix(lines[idx], "\r"))
			lines[idx] = strings.Replace(lines[idx], bolded, strings.Trim(bolded, mark), 1)
			plan.Changes = append(plan.Changes, Change{
				Line:   mk.Line,
				TaskID: t.ID,
				Old:    old,
				New:    strings.TrimSpace(strings.TrimSuffix(lines[idx], "\r")),
				Status: StatusRewritten,
				Reason: "removed emphasis around task ID",
			})
			return
		}
	}
}

// convertBullet maps "- Code: src/x.ts" style bullets onto hooks.
func (m *Migrator) convertBullet(kind, rest string) Candidate {
	input := kind + ": " + rest
	kind = strings.ToLower(kind)
	if kind == "ui" {
		h := newHook(hook.TypeUI, "screen", strings.Trim(rest, "`*\"' "))
		return m.finish(input, h, StatusRewritten, "converted UI bullet")
	}

	text := strings.TrimSpace(rest)
	if strings.HasPrefix(text, "`") {
		if end := strings.Index(text[1:], "`"); end >= 0 {
			inner := text[1 : end+1]
			if toolName(inner) != "" {
				return m.wrapCommand(input, inner, "converted "+kind+" bullet")
			}
			text = inner
		}
	}
	if toolName(text) != "" {
		return m.wrapCommand(input, text, "converted "+kind+" bullet")
	}

	tok := strings.Trim(strings.Fields(text)[0], "`*\"',;")
	t := hook.TypeCode
	switch kind {
	case "test", "tests":
		t = hook.TypeTest
	case "docs":
		t = hook.TypeDocs
	}
	status := StatusRewritten
	reason := "converted " + kind + " bullet"
	if tok != text {
		status = StatusNeedsReview
		reason += " (description after the path was dropped)"
	}
	return m.finish(input, newHook(t, "path", tok), status, reason)
}

type insertion struct {
	after int
	text  string
}

// suggest asks src for a hook for task t.
func (m *Migrator) suggest(ctx context.Context, plan *Plan, src HookSource, t parser.TaskBlock, lines []string) (*insertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("plan migration: %w", err)
	}
	payload, err := src.Suggest(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("plan migration: %w", ctx.Err())
		}
		plan.Rejected = append(plan.Rejected, Rejection{Line: t.Line, TaskID: t.ID, Reason: "hook source: " + err.Error()})
		return nil, nil
	}
	c := m.Canonicalize(payload)
	if c.Status == StatusUnchanged {
		// A well-formed payload still has to pass the sandbox.
		c = m.finish(c.Input, c.Hook, StatusRewritten, "")
	}
	if c.Status == StatusRejected {
		plan.Rejected = append(plan.Rejected, Rejection{Line: t.Line, TaskID: t.ID, Payload: payload, Reason: c.Reason})
		return nil, nil
	}

	_, cr := splitCR(lines[t.Line-1])
	indent := leadingSpace(lines[t.Line-1]) + "  "
	plan.Changes = append(plan.Changes, Change{
		Line:     t.Line,
		TaskID:   t.ID,
		New:      c.Text,
		Status:   c.Status,
		Reason:   strings.TrimSpace("suggested by hook source " + c.Reason),
		Inserted: true,
	})
	return &insertion{after: t.Line, text: indent + "- " + c.Text + cr}, nil
}

// rewriteSegments replaces the payload of the i-th "evidence:" token with
// repl[i], keeping the surrounding cells, pipes and backticks. Empty entries
// leave their payload alone.
func rewriteSegments(line string, repl []string) string {
	body, cr := splitCR(line)
	var b strings.Builder
	last := 0
	for i, sp := range parser.EvidenceSpans(body) {
		if i >= len(repl) || repl[i] == "" {
			continue
		}
		seg := body[sp.Start:sp.End]
		trimmed := strings.TrimRight(seg, " \t|`")
		b.WriteString(body[last:sp.Start])
		b.WriteString(" " + repl[i])
		b.WriteString(seg[len(trimmed):])
		last = sp.End
	}
	b.WriteString(body[last:])
	return b.String() + cr
}

func splitCR(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return strings.TrimSuffix(line, "\r"), "\r"
	}
	return line, ""
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
