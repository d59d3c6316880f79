package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `# Auth Tasks

spec_id: auth-core

| Field | Value |
|-------|-------|
| Owner | platform |
| **Spec Version** | 1.2 |

## Tasks

### Backend

- [x] TSK-AUTH-001 Implement ` + "`src/auth.ts`" + ` token validation
  - evidence: code path=src/auth.ts symbol=validateToken
  - evidence: test path=tests/auth.test.ts contains="validateToken"
- [ ] TSK-AUTH-002 Document login flow
  | step | evidence: docs path=README.md heading=Login | evidence: docs path=docs/flow.md |
- [ ] **TSK-AUTH-003** Legacy task
  **Evidence Hooks:**
  - Code: src/legacy.ts
- [X] T1.2 Plain id

### Notes

evidence: code path=src/orphan.ts
`

func TestParser_Parse(t *testing.T) {
	doc, err := NewParser().ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}

	if len(doc.StructuralErrors) != 0 {
		t.Errorf("StructuralErrors = %v, want none", doc.StructuralErrors)
	}
	if len(doc.Tasks) != 4 {
		t.Fatalf("Tasks count = %d, want 4", len(doc.Tasks))
	}

	t1 := doc.Tasks[0]
	if t1.ID != "TSK-AUTH-001" || !t1.Checked {
		t.Errorf("first task = %+v", t1)
	}
	if t1.Title != "Implement `src/auth.ts` token validation" {
		t.Errorf("Title = %q", t1.Title)
	}
	if t1.Section != "Backend" {
		t.Errorf("Section = %q, want Backend", t1.Section)
	}
	if len(t1.Evidence) != 2 {
		t.Fatalf("Evidence count = %d, want 2", len(t1.Evidence))
	}
	if t1.Evidence[0].Text != "evidence: code path=src/auth.ts symbol=validateToken" {
		t.Errorf("Evidence[0] = %q", t1.Evidence[0].Text)
	}
	if t1.Evidence[0].Line != 15 {
		t.Errorf("Evidence[0].Line = %d, want 15", t1.Evidence[0].Line)
	}

	t2 := doc.Tasks[1]
	if len(t2.Evidence) != 2 {
		t.Fatalf("table row evidence count = %d, want 2", len(t2.Evidence))
	}
	if t2.Evidence[0].Text != "evidence: docs path=README.md heading=Login" {
		t.Errorf("table cell evidence = %q", t2.Evidence[0].Text)
	}
	if t2.Evidence[1].Text != "evidence: docs path=docs/flow.md" {
		t.Errorf("second table cell evidence = %q", t2.Evidence[1].Text)
	}

	t3 := doc.Tasks[2]
	if t3.ID != "TSK-AUTH-003" {
		t.Errorf("bolded ID = %q, want TSK-AUTH-003", t3.ID)
	}
	if len(t3.Evidence) != 0 {
		t.Errorf("legacy task evidence = %v, want none", t3.Evidence)
	}
	kinds := make([]string, 0, len(t3.Legacy))
	for _, m := range t3.Legacy {
		kinds = append(kinds, m.Kind)
	}
	if strings.Join(kinds, ",") != "bold_id,evidence_header,type_bullet" {
		t.Errorf("legacy kinds = %v", kinds)
	}
	if !t3.HasLegacyEvidence() {
		t.Error("HasLegacyEvidence = false, want true")
	}

	if doc.Tasks[3].ID != "T1.2" || !doc.Tasks[3].Checked {
		t.Errorf("fourth task = %+v", doc.Tasks[3])
	}

	if len(doc.Orphans) != 1 || doc.Orphans[0].Text != "evidence: code path=src/orphan.ts" {
		t.Errorf("Orphans = %v", doc.Orphans)
	}
}

func TestParser_Meta(t *testing.T) {
	doc, err := NewParser().ParseString(sampleDoc)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"spec_id":      "auth-core",
		"owner":        "platform",
		"spec_version": "1.2",
	}
	for k, v := range want {
		if doc.Meta[k] != v {
			t.Errorf("Meta[%s] = %q, want %q", k, doc.Meta[k], v)
		}
	}
	if _, ok := doc.Meta["field"]; ok {
		t.Error("table header row should not become metadata")
	}
	if doc.SpecID() != "auth-core" {
		t.Errorf("SpecID = %q", doc.SpecID())
	}
}

func TestParser_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		kinds []string
	}{
		{
			name:  "missing tasks section",
			doc:   "# Title\n\n- [ ] T1 orphan task\n",
			kinds: []string{ErrKindMissingTasks},
		},
		{
			name:  "duplicate tasks section",
			doc:   "## Tasks\n- [ ] T1 a\n## Tasks\n- [ ] T2 b\n",
			kinds: []string{ErrKindDuplicateTasks},
		},
		{
			name:  "duplicate id",
			doc:   "## Tasks\n- [ ] T1 a\n- [x] T1 again\n",
			kinds: []string{ErrKindDuplicateID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewParser().ParseString(tt.doc)
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			var got []string
			for _, e := range doc.StructuralErrors {
				got = append(got, e.Kind)
			}
			if strings.Join(got, ",") != strings.Join(tt.kinds, ",") {
				t.Errorf("kinds = %v, want %v", got, tt.kinds)
			}
			// Tasks are still extracted.
			if len(doc.Tasks) == 0 {
				t.Error("structural errors should not stop extraction")
			}
		})
	}
}

func TestParser_HeadingEndsBlock(t *testing.T) {
	doc, err := NewParser().ParseString(`## Tasks
- [ ] T1 first
  evidence: code path=a.ts
## Appendix
  evidence: code path=b.ts
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tasks[0].Evidence) != 1 {
		t.Errorf("Evidence = %v, want only a.ts", doc.Tasks[0].Evidence)
	}
	if len(doc.Orphans) != 1 {
		t.Errorf("Orphans = %v, want b.ts", doc.Orphans)
	}
}

func TestParser_FencesIgnored(t *testing.T) {
	doc, err := NewParser().ParseString("## Tasks\n- [ ] T1 a\n```\n# not a heading\nevidence: code path=x.ts\n```\n  evidence: code path=y.ts\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tasks) != 1 || len(doc.Tasks[0].Evidence) != 1 {
		t.Fatalf("Tasks = %+v", doc.Tasks)
	}
	if doc.Tasks[0].Evidence[0].Text != "evidence: code path=y.ts" {
		t.Errorf("Evidence = %q", doc.Tasks[0].Evidence[0].Text)
	}
}

func TestParser_NonIDChecklistItems(t *testing.T) {
	doc, err := NewParser().ParseString("## Tasks\n- [ ] T1 real\n  - [ ] 1) sub-step\n  evidence: code path=a.ts\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tasks) != 1 {
		t.Fatalf("Tasks = %d, want 1", len(doc.Tasks))
	}
	if len(doc.Tasks[0].Evidence) != 1 {
		t.Errorf("sub-step should not end the block: %+v", doc.Tasks[0])
	}
}

func TestParser_EvidenceOnTaskLine(t *testing.T) {
	doc, err := NewParser().ParseString("## Tasks\n- [ ] T1 Add login evidence: code path=src/login.ts\n")
	if err != nil {
		t.Fatal(err)
	}
	task := doc.Tasks[0]
	if task.Title != "Add login" {
		t.Errorf("Title = %q, want %q", task.Title, "Add login")
	}
	if len(task.Evidence) != 1 || task.Evidence[0].Text != "evidence: code path=src/login.ts" {
		t.Errorf("Evidence = %v", task.Evidence)
	}
}

func TestParser_TextRoundTrip(t *testing.T) {
	for _, src := range []string{sampleDoc, "## Tasks\n- [ ] T1 a", "line\r\nother\r\n"} {
		doc, err := NewParser().ParseString(src)
		if err != nil {
			t.Fatal(err)
		}
		if doc.Text() != src {
			t.Errorf("Text() = %q, want %q", doc.Text(), src)
		}
	}
}

func TestParser_LineTooLong(t *testing.T) {
	p := NewParser()
	p.MaxLineBytes = 10
	if _, err := p.ParseString("## Tasks\n- [ ] T1 " + strings.Repeat("x", 20) + "\n"); err == nil {
		t.Error("ParseString should reject over-long lines")
	}
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := NewParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Path != path {
		t.Errorf("Path = %q", doc.Path)
	}
	if len(doc.Checksum) != 16 {
		t.Errorf("Checksum = %q, want 16 hex chars", doc.Checksum)
	}
	if doc.EvidenceCount() != 4 {
		t.Errorf("EvidenceCount = %d, want 4", doc.EvidenceCount())
	}

	if _, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("ParseFile on a missing file should fail")
	}
}

func TestSplitEvidence(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"no hooks here", nil},
		{"- evidence: code path=a.ts", []string{"evidence: code path=a.ts"}},
		{"`evidence: code path=a.ts`", []string{"evidence: code path=a.ts"}},
		{"| evidence: code path=a.ts | evidence: test path=b.ts |", []string{"evidence: code path=a.ts", "evidence: test path=b.ts"}},
		{"evidence:", []string{"evidence:"}},
		{"| evidence: code path=src/auth.ts symbol=validateToken | done |", []string{"evidence: code path=src/auth.ts symbol=validateToken"}},
		{`| T-1 | evidence: code path=a.ts contains="a | b" | note |`, []string{`evidence: code path=a.ts contains="a | b"`}},
		{`| evidence: code path=a.ts contains=a\|b | note |`, []string{`evidence: code path=a.ts contains=a\|b`}},
		{"| evidence: docs path=a.md contains=don't | done |", []string{"evidence: docs path=a.md contains=don't"}},
		{`- evidence: code path=a.ts regex="a|b"`, []string{`evidence: code path=a.ts regex="a|b"`}},
	}
	for _, tt := range tests {
		got := SplitEvidence(tt.line)
		if strings.Join(got, "\n") != strings.Join(tt.want, "\n") || len(got) != len(tt.want) {
			t.Errorf("SplitEvidence(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestParse_EvidenceInTableCell(t *testing.T) {
	doc, err := NewParser().ParseString("## Tasks\n- [x] T-1 Auth\n| evidence: code path=src/auth.ts symbol=validateToken | done |\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tasks) != 1 || len(doc.Tasks[0].Evidence) != 1 {
		t.Fatalf("tasks = %+v, want one task with one evidence line", doc.Tasks)
	}
	ev := doc.Tasks[0].Evidence[0]
	if want := "evidence: code path=src/auth.ts symbol=validateToken"; ev.Text != want || ev.Line != 3 {
		t.Errorf("evidence = %q at line %d, want %q at line 3", ev.Text, ev.Line, want)
	}
}

func TestDetectLegacy(t *testing.T) {
	tests := []struct {
		line string
		kind string
		ok   bool
	}{
		{"**Evidence:** src/a.ts exists", LegacyEvidenceHeader, true},
		{"  **Evidence Hooks:**", LegacyEvidenceHeader, true},
		{"- Test: tests/a.test.ts", LegacyTypeBullet, true},
		{"* **Docs:** README.md", LegacyTypeBullet, true},
		{"- evidence: code path=a.ts", "", false},
		{"- Coding style: tabs", "", false},
	}
	for _, tt := range tests {
		m, ok := DetectLegacy(tt.line, 3)
		if ok != tt.ok || m.Kind != tt.kind {
			t.Errorf("DetectLegacy(%q) = (%q, %v), want (%q, %v)", tt.line, m.Kind, ok, tt.kind, tt.ok)
		}
	}
}
