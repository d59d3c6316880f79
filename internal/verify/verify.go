// Package verify turns a task document into per-task verdicts.
//
// One run owns one budget.Budget. Evidence-level failures stay inside their
// result: a malformed hook, a scope violation, or an exhausted budget never
// stops the remaining tasks from being evaluated.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/budget"
	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/matcher"
	"github.com/boshu2/hookcheck/internal/migrate"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/safety"
)

// WhyOrphan is reported for evidence written outside any task block.
const WhyOrphan = "evidence outside any task block is ignored"

// Options configures a Verifier.
type Options struct {
	Policy Policy

	// Matcher is passed to matcher.New. MaxExcerptChars defaults to the
	// sandbox limit.
	Matcher matcher.Options

	// Parser overrides parser.NewParser().
	Parser *parser.Parser

	Logger *zap.Logger

	// Version is copied into reports.
	Version string

	// Now and NewRunID are overridable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// Verifier evaluates task documents under one project root.
type Verifier struct {
	sb      *safety.Sandbox
	matcher *matcher.Matcher
	mig     *migrate.Migrator
	parser  *parser.Parser
	opts    Options
	log     *zap.Logger
}

// New creates a Verifier bound to sb.
func New(sb *safety.Sandbox, opts Options) (*Verifier, error) {
	if sb == nil {
		return nil, errors.New("verify: nil sandbox")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limits := sb.Config().Limits
	if opts.Matcher.MaxExcerptChars == 0 {
		opts.Matcher.MaxExcerptChars = limits.MaxExcerptChars
	}
	if opts.Matcher.Logger == nil {
		opts.Matcher.Logger = log
	}
	m, err := matcher.New(sb, opts.Matcher)
	if err != nil {
		return nil, fmt.Errorf("create matcher: %w", err)
	}
	if opts.Parser == nil {
		opts.Parser = parser.NewParser()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Verifier{
		sb:      sb,
		matcher: m,
		mig:     migrate.New(sb, migrate.Options{Logger: log}),
		parser:  opts.Parser,
		opts:    opts,
		log:     log,
	}, nil
}

// VerifyFile parses path and verifies it.
func (v *Verifier) VerifyFile(ctx context.Context, path string) (*Report, error) {
	doc, err := v.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, doc), nil
}

// Verify evaluates every task in doc. It always returns a report; context
// cancellation exhausts the budget and degrades the remaining evidence.
func (v *Verifier) Verify(ctx context.Context, doc *parser.Document) *Report {
	started := v.opts.Now()
	b := budget.NewWithClock(ctx, budgetLimits(v.sb.Config().Limits), v.opts.Now)

	rep := &Report{
		RunID:            v.opts.NewRunID(),
		Workflow:         Workflow,
		Version:          v.opts.Version,
		TasksPath:        doc.Path,
		ProjectRoot:      v.sb.Root(),
		SpecID:           doc.SpecID(),
		Checksum:         doc.Checksum,
		StartedAt:        started,
		Policy:           v.opts.Policy,
		StructuralErrors: doc.StructuralErrors,
	}

	for _, task := range doc.Tasks {
		verdict := v.verifyTask(task, b)
		rep.Tasks = append(rep.Tasks, verdict)
		rep.Totals.add(verdict)
		v.log.Debug("task verified",
			zap.String("task", verdict.ID),
			zap.String("status", string(verdict.Status)),
			zap.String("confidence", string(verdict.Confidence)))
	}
	for _, ev := range doc.Orphans {
		rep.Orphans = append(rep.Orphans, matcher.Invalid(ev.Text, ev.Line, WhyOrphan))
	}

	rep.Budget = b.Snapshot()
	rep.FinishedAt = v.opts.Now()
	rep.NextSteps = NextSteps(rep)

	v.log.Info("verification finished",
		zap.String("run_id", rep.RunID),
		zap.String("tasks_path", rep.TasksPath),
		zap.Int("tasks", rep.Totals.Tasks),
		zap.Int("verified", rep.Totals.Verified),
		zap.Bool("budget_exhausted", rep.Budget.Exhausted))
	return rep
}

func (v *Verifier) verifyTask(task parser.TaskBlock, b *budget.Budget) TaskVerdict {
	verdict := TaskVerdict{
		ID:       task.ID,
		Title:    task.Title,
		Line:     task.Line,
		Section:  task.Section,
		Checked:  task.Checked,
		Legacy:   task.Legacy,
		Evidence: make([]matcher.Result, 0, len(task.Evidence)),
	}
	for _, ev := range task.Evidence {
		verdict.Evidence = append(verdict.Evidence, v.evaluate(ev, b))
	}

	verdict.Status, verdict.Confidence, verdict.Why = Classify(verdict.Evidence, v.opts.Policy)
	verdict.CheckboxDrift = task.Checked && verdict.Status != StatusVerified

	switch verdict.Status {
	case StatusMissingHooks, StatusNotVerified, StatusNeedsManual:
		verdict.SuggestedHooks = v.suggest(task, verdict.Evidence)
	}
	return verdict
}

// evaluate parses one evidence line and resolves it.
func (v *Verifier) evaluate(ev parser.EvidenceLine, b *budget.Budget) matcher.Result {
	h, err := hook.Parse(ev.Text)
	if err != nil {
		res := matcher.Invalid(ev.Text, ev.Line, err.Error())
		var pe *hook.ParseError
		if errors.As(err, &pe) && pe.Legacy() {
			if c := v.mig.Canonicalize(ev.Text); c.Status.Changed() {
				res.Suggestion = c.Text
			}
		}
		return res
	}
	h.Line = ev.Line
	return v.matcher.Match(h, b)
}

// Classify derives a task's status, confidence, and reason from its evidence
// results. The first matching rule wins: invalid_scope, needs_manual (when
// nothing verified), verified, missing_hooks, not_verified.
func Classify(results []matcher.Result, p Policy) (Status, matcher.Confidence, string) {
	conf := matcher.Low
	var anyScope, anyManual, verified bool
	for _, r := range results {
		conf = matcher.MaxConfidence(conf, r.Confidence)
		switch r.Scope {
		case matcher.ScopeInvalidScope:
			anyScope = true
		case matcher.ScopeNeedsManual:
			anyManual = true
		case matcher.ScopeOK:
			if r.Matched && (r.Confidence == matcher.High || (r.Confidence == matcher.Medium && p.mediumVerifies(r.Type))) {
				verified = true
			}
		}
	}

	switch {
	case anyScope:
		return StatusInvalidScope, conf, WhyInvalidScope
	case anyManual && !verified:
		return StatusNeedsManual, conf, WhyNeedsManual
	case verified:
		return StatusVerified, conf, WhyVerified
	case len(results) == 0:
		return StatusMissingHooks, conf, WhyMissingHooks
	default:
		return StatusNotVerified, conf, WhyNotVerified
	}
}

// budgetLimits maps the sandbox limits onto a run budget.
func budgetLimits(l safety.Limits) budget.Limits {
	return budget.Limits{
		MaxBytes:     l.MaxTotalBytes,
		MaxFileBytes: l.MaxFileBytes,
		MaxFiles:     l.MaxFiles,
		Timeout:      time.Duration(l.MaxSeconds) * time.Second,
	}
}
