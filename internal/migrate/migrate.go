// Package migrate repairs legacy and malformed evidence hooks into the
// canonical grammar.
//
// Every candidate the migrator produces is re-parsed strictly and checked
// against the same sandbox the verifier uses. A candidate that fails either
// check is rejected and its line is left untouched.
package migrate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/safety"
)

// DefaultBackupSuffix is inserted between the document name and the backup
// timestamp.
const DefaultBackupSuffix = ".bak"

// DescriptionExcerptRunes bounds the contains= value built from descriptive
// text.
const DescriptionExcerptRunes = 60

// Status classifies one canonicalization.
type Status string

const (
	StatusUnchanged   Status = "unchanged"
	StatusRewritten   Status = "rewritten"
	StatusNeedsReview Status = "needs_review"
	StatusRejected    Status = "rejected"
)

// Changed reports whether the status replaces the input.
func (s Status) Changed() bool {
	return s == StatusRewritten || s == StatusNeedsReview
}

// Candidate is the result of canonicalizing one payload.
type Candidate struct {
	Input  string     `json:"input" yaml:"input"`
	Text   string     `json:"text" yaml:"text"`
	Hook   *hook.Hook `json:"hook,omitempty" yaml:"hook,omitempty"`
	Status Status     `json:"status" yaml:"status"`
	Reason string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Options configures a Migrator.
type Options struct {
	// Safety is used for string-level path checks when no sandbox is bound.
	Safety safety.Config

	// Normalize rewrites valid hooks whose text differs from canonical form.
	Normalize bool

	// BackupSuffix overrides DefaultBackupSuffix.
	BackupSuffix string

	Logger *zap.Logger

	// Now overrides time.Now for backup names.
	Now func() time.Time
}

// Migrator canonicalizes hooks and rewrites task documents.
type Migrator struct {
	sb   *safety.Sandbox
	opts Options
	log  *zap.Logger

	writeFile func(path string, data []byte, perm os.FileMode) error
}

// New creates a Migrator. sb may be nil when no project root is known; anchor
// files are then chosen without checking that they exist, and Apply refuses
// to write.
func New(sb *safety.Sandbox, opts Options) *Migrator {
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = DefaultBackupSuffix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if sb != nil {
		opts.Safety = sb.Config()
	}
	return &Migrator{sb: sb, opts: opts, log: log, writeFile: atomicWrite}
}

// Canonicalize turns one payload into a canonical hook. payload may carry a
// list marker and the "evidence:" prefix.
func (m *Migrator) Canonicalize(payload string) Candidate {
	c := m.canonicalize(payload)
	m.log.Debug("hook canonicalized",
		zap.String("input", c.Input),
		zap.String("status", string(c.Status)),
		zap.String("reason", c.Reason))
	return c
}

func (m *Migrator) canonicalize(payload string) Candidate {
	input := strings.TrimSpace(payload)
	p := hook.Payload(input)
	if p == "" {
		return reject(input, "empty evidence payload")
	}
	if toolName(p) != "" {
		return m.wrapCommand(input, p, "command payload")
	}

	h, err := hook.Parse(p)
	if err == nil {
		return m.canonical(input, p, h)
	}
	var pe *hook.ParseError
	if !errors.As(err, &pe) {
		return reject(input, err.Error())
	}

	switch {
	case pe.Legacy():
		return m.fromLegacy(input, p, pe)
	case pe.Kind == hook.ErrStrayToken:
		if lh, lerr := hook.ParseLenient(p); lerr == nil {
			return m.finish(input, lh, StatusRewritten, "folded stray tokens into "+strings.Join(lh.Recovered, ", "))
		}
		return m.wrapCommand(input, p, "unrecoverable stray tokens")
	case pe.Kind == hook.ErrUnknownKey, pe.Kind == hook.ErrExclusiveKey, pe.Kind == hook.ErrDuplicateKey:
		return m.repairKeys(input, pe)
	case pe.Kind == hook.ErrUnknownType, pe.Kind == hook.ErrTokenize:
		return m.describe(input, p, "descriptive text")
	default:
		return reject(input, pe.Error())
	}
}

// canonical handles payloads that already parse strictly.
func (m *Migrator) canonical(input, payload string, h *hook.Hook) Candidate {
	if p := h.Get("path"); p != "" && toolName(p) != "" {
		if _, err := safety.Validate(p, m.opts.Safety); safety.KindOf(err) == safety.KindLooksLikeCommand {
			return m.wrapCommand(input, p, "path held a command")
		}
	}
	if h.CommandTail {
		return m.finish(input, h, StatusRewritten, "quoted command tail")
	}
	canon := hook.Format(h)
	if m.opts.Normalize && canon != hook.Prefix+" "+payload {
		return m.finish(input, h, StatusRewritten, "normalized to canonical form")
	}
	return Candidate{Input: input, Text: input, Hook: h, Status: StatusUnchanged}
}

// wrapCommand records cmd verbatim on a test hook anchored at a project file
// for the command's tool.
func (m *Migrator) wrapCommand(input, cmd, reason string) Candidate {
	tool := toolName(cmd)
	candidates := m.commandAnchors(tool)
	anchor, found := m.pickAnchor(candidates)
	h := &hook.Hook{Type: hook.TypeTest, Params: map[string]string{"path": anchor, "command": cmd}}

	status := StatusRewritten
	why := fmt.Sprintf("%s: wrapped as command= anchored at %s", reason, anchor)
	if tool == "" {
		status = StatusNeedsReview
	}
	if !found {
		status = StatusNeedsReview
		why += fmt.Sprintf(" (no anchor file found; tried %s)", strings.Join(candidates, ", "))
	}
	if err := m.checkScope(h); err != nil {
		return m.unscoped(input, h, fmt.Sprintf("%s: wrapped as command=; anchor %s is out of scope: %v", reason, anchor, err))
	}
	return m.finish(input, h, status, why)
}

// unscoped keeps a hook that parses but whose path the sandbox refuses, for a
// human to re-point.
func (m *Migrator) unscoped(input string, h *hook.Hook, reason string) Candidate {
	text := hook.Format(h)
	parsed, err := hook.Parse(text)
	if err != nil {
		return reject(input, fmt.Sprintf("candidate %q does not parse: %v", text, err))
	}
	parsed.Raw = text
	return Candidate{Input: input, Text: text, Hook: parsed, Status: StatusNeedsReview, Reason: reason}
}

// describe keeps descriptive text as a docs hook for a human to refine.
func (m *Migrator) describe(input, payload, reason string) Candidate {
	text := strings.Join(strings.Fields(payload), " ")
	if utf8.RuneCountInString(text) > DescriptionExcerptRunes {
		text = strings.TrimSpace(string([]rune(text)[:DescriptionExcerptRunes]))
	}
	h := &hook.Hook{Type: hook.TypeDocs, Params: map[string]string{"path": "README.md", "contains": text}}
	return m.finish(input, h, StatusNeedsReview, reason+": kept as docs contains=")
}

// repairKeys drops keys that are unknown or not valid for the hook's type.
func (m *Migrator) repairKeys(input string, pe *hook.ParseError) Candidate {
	params := make(map[string]string, len(pe.Params))
	for k, v := range pe.Params {
		params[k] = v
	}
	var dropped []string
	if pe.Kind != hook.ErrDuplicateKey && pe.Key != "" {
		delete(params, pe.Key)
		dropped = append(dropped, pe.Key)
	}

	for range len(pe.Params) + 1 {
		h := &hook.Hook{Type: hook.Type(pe.Type), Params: params}
		parsed, err := hook.Parse(hook.Format(h))
		if err == nil {
			why := "dropped duplicate key " + pe.Key
			if len(dropped) > 0 {
				why = "dropped invalid keys: " + strings.Join(dropped, ", ")
			}
			return m.finish(input, parsed, StatusNeedsReview, why)
		}
		var next *hook.ParseError
		if !errors.As(err, &next) || (next.Kind != hook.ErrUnknownKey && next.Kind != hook.ErrExclusiveKey) {
			return reject(input, err.Error())
		}
		delete(params, next.Key)
		dropped = append(dropped, next.Key)
	}
	return reject(input, pe.Error())
}

// finish re-validates a produced hook and fills the candidate.
func (m *Migrator) finish(input string, h *hook.Hook, status Status, reason string) Candidate {
	text := hook.Format(h)
	parsed, err := hook.Parse(text)
	if err != nil {
		return reject(input, fmt.Sprintf("candidate %q does not parse: %v", text, err))
	}
	if err := m.checkScope(parsed); err != nil {
		return reject(input, fmt.Sprintf("candidate %q: %v", text, err))
	}
	if status == StatusRewritten && !m.anchorExists(parsed) {
		status = StatusNeedsReview
		reason += fmt.Sprintf(" (%s does not exist)", parsed.Anchor())
	}
	parsed.Raw = text
	return Candidate{Input: input, Text: text, Hook: parsed, Status: status, Reason: reason}
}

// checkScope applies the verifier's path rules. A ui screen is a label and
// only has to stay relative.
func (m *Migrator) checkScope(h *hook.Hook) error {
	p := h.Get("path")
	if p == "" {
		_, err := safety.Validate(h.Get("screen"), safety.Config{})
		switch safety.KindOf(err) {
		case safety.KindAbsolutePath, safety.KindTraversal:
			return err
		}
		return nil
	}
	if m.sb != nil {
		_, err := m.sb.Resolve(p)
		return err
	}
	_, err := safety.Validate(p, m.opts.Safety)
	return err
}

// anchorExists reports whether the hook's path exists. It is always true
// without a sandbox and for ui hooks without a path.
func (m *Migrator) anchorExists(h *hook.Hook) bool {
	p := h.Get("path")
	if m.sb == nil || p == "" {
		return true
	}
	r, err := m.sb.Resolve(p)
	if err != nil {
		return false
	}
	_, err = os.Stat(r.Abs)
	return err == nil
}

func reject(input, reason string) Candidate {
	return Candidate{Input: input, Text: input, Status: StatusRejected, Reason: reason}
}
