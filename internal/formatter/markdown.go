package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/boshu2/hookcheck/internal/matcher"
	"github.com/boshu2/hookcheck/internal/verify"
)

// MarkdownFormatter renders the human-readable report.md.
type MarkdownFormatter struct {
	// Footer is appended after the next steps when set.
	Footer string
}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

var markdownTmpl = template.Must(template.New("report").Funcs(templateFuncs()).Parse(markdownTemplate))

// Format writes r as markdown.
func (mf *MarkdownFormatter) Format(w io.Writer, r *verify.Report) error {
	if err := markdownTmpl.Execute(w, mf.buildTemplateData(r)); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// Extension returns the file extension for markdown.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

// statusSection is one "### ..." block of the task details.
type statusSection struct {
	Title string
	Tasks []verify.TaskVerdict

	// Per-section detail switches.
	ShowConfidence bool
	ShowWhy        bool
	ShowHooks      bool
}

// templateData holds all data for the markdown template.
type templateData struct {
	Report    *verify.Report
	SpecID    string
	Generated string
	Sections  []statusSection
	Drift     []verify.TaskVerdict
	Footer    string
}

func (mf *MarkdownFormatter) buildTemplateData(r *verify.Report) *templateData {
	spec := r.SpecID
	if spec == "" {
		spec = r.TasksPath
	}
	gen := r.FinishedAt
	if gen.IsZero() {
		gen = r.StartedAt
	}

	data := &templateData{
		Report:    r,
		SpecID:    spec,
		Generated: gen.UTC().Format(time.RFC3339),
		Footer:    mf.Footer,
	}

	sections := []statusSection{
		{Title: "✅ Verified Tasks", ShowConfidence: true},
		{Title: "❌ Not Verified Tasks", ShowConfidence: true, ShowWhy: true, ShowHooks: true},
		{Title: "👁️ Needs Manual Verification", ShowWhy: true, ShowHooks: true},
		{Title: "⚠️ Missing Evidence Hooks", ShowHooks: true},
		{Title: "🚫 Invalid Evidence Scope", ShowWhy: true},
	}
	for i, s := range verify.Statuses {
		sections[i].Tasks = r.TasksWith(s)
		if len(sections[i].Tasks) > 0 {
			data.Sections = append(data.Sections, sections[i])
		}
	}
	for _, t := range r.Tasks {
		if t.CheckboxDrift {
			data.Drift = append(data.Drift, t)
		}
	}
	return data
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"code": func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "'") + "`"
		},
		"inc": func(i int) int { return i + 1 },
		"cell": func(s string) string {
			return strings.ReplaceAll(s, "|", `\|`)
		},
		"scopeIssue": func(t verify.TaskVerdict) []string {
			var out []string
			for _, e := range t.Evidence {
				if e.Scope == matcher.ScopeInvalid || e.Scope == matcher.ScopeInvalidScope {
					out = append(out, fmt.Sprintf("line %d: %s (%s)", e.Line, e.Raw, e.Why))
				}
			}
			return out
		},
	}
}

const markdownTemplate = `# Task Verification Report: {{ .SpecID }}

**Generated:** {{ .Generated }}
**Run ID:** {{ .Report.RunID }}
**Tasks File:** {{ .Report.TasksPath }}

## Summary

| Metric | Count |
|--------|-------|
| Total Tasks | {{ .Report.Totals.Tasks }} |
| Verified Done | {{ .Report.Totals.Verified }} |
| Not Verified | {{ .Report.Totals.NotVerified }} |
| Needs Manual Check | {{ .Report.Totals.NeedsManual }} |
| Missing Evidence Hooks | {{ .Report.Totals.MissingHooks }} |
| Invalid Evidence Scope | {{ .Report.Totals.InvalidScope }} |
| Invalid Hooks | {{ .Report.Totals.InvalidHooks }} |
| Checkbox Drift | {{ .Report.Totals.CheckboxDrift }} |
{{- if .Report.Budget.Exhausted }}

> **Scan budget exceeded ({{ .Report.Budget.Reason }}).** Evidence checked after that point was not read and counts as low confidence.
{{- end }}

## Task Details
{{- range .Sections }}

### {{ .Title }}
{{ $s := . }}
{{- range .Tasks }}
- **{{ .ID }}**: {{ .Title }}{{ if $s.ShowConfidence }} (confidence: {{ .Confidence }}){{ end }}
{{- if $s.ShowWhy }}
  - Why: {{ .Why }}
{{- range scopeIssue . }}
  - {{ . }}
{{- end }}
{{- end }}
{{- if and $s.ShowHooks .SuggestedHooks }}
  - Suggested hooks:
{{- range .SuggestedHooks }}
    - {{ code . }}
{{- end }}
{{- end }}
{{- end }}
{{- end }}
{{- if .Drift }}

### Checkbox Drift
{{ range .Drift }}
- **{{ .ID }}** is checked but {{ .Status }}
{{- end }}
{{- end }}
{{- if .Report.StructuralErrors }}

## Structural Errors
{{ range .Report.StructuralErrors }}
- {{ .Error }}
{{- end }}
{{- end }}
{{- if .Report.Orphans }}

## Ignored Evidence

| Line | Hook | Why |
|------|------|-----|
{{- range .Report.Orphans }}
| {{ .Line }} | {{ code .Raw | cell }} | {{ .Why }} |
{{- end }}
{{- end }}

## Evidence Gaps & Remediation

### Common Issues

1. **Missing Code Evidence**: Add ` + "`evidence: code path=<file_path>`" + ` for implementation files
2. **Missing Test Evidence**: Add ` + "`evidence: test path=<test_file_path>`" + ` for test files
3. **UI Components**: UI evidence requires manual verification
4. **Invalid Paths**: Ensure evidence paths are within the workspace

### Remediation Templates

` + "```" + `
evidence: code path=src/services/example.service.ts symbol=ExampleService
evidence: test path=tests/unit/example.test.ts contains="example"
evidence: ui screen=ExampleScreen component=ExampleScreen route=/example states=loading,empty,error,success
evidence: docs path=docs/example.md heading="Example Section"
` + "```" + `
{{- if .Report.NextSteps }}

## Next Steps
{{ range $i, $s := .Report.NextSteps }}
{{ inc $i }}. {{ $s.Why }}
{{- if $s.Command }}
   ` + "```bash" + `
   {{ $s.Command }}
   ` + "```" + `
{{- end }}
{{- end }}
{{- end }}
{{- if .Footer }}

---

{{ .Footer }}
{{- end }}
`
