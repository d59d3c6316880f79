package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/safety"
)

var fixture = map[string]string{
	"src/auth.ts":          "export function validateToken() {}\n",
	"package.json":         "{\"name\": \"demo\"}\n",
	"go.mod":               "module demo\n",
	"README.md":            "# Demo\n",
	"config.yaml":          "port: 8080\n",
	"prisma/schema.prisma": "model users {}\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newTestMigrator(t *testing.T, opts Options) (*Migrator, *safety.Sandbox) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, fixture)
	sb, err := safety.New(root, safety.DefaultConfig())
	require.NoError(t, err)
	return New(sb, opts), sb
}

func TestCanonicalize(t *testing.T) {
	m, _ := newTestMigrator(t, Options{})

	tests := []struct {
		name       string
		input      string
		wantText   string
		wantStatus Status
		wantReason string
	}{
		{
			name:       "canonical hook is a no-op",
			input:      "evidence: code path=src/auth.ts symbol=validateToken",
			wantText:   "evidence: code path=src/auth.ts symbol=validateToken",
			wantStatus: StatusUnchanged,
		},
		{
			name:       "bare command",
			input:      "npm run build",
			wantText:   `evidence: test path=package.json command="npm run build"`,
			wantStatus: StatusRewritten,
		},
		{
			name:       "unquoted command tail",
			input:      "evidence: test path=package.json command=npm run build",
			wantText:   `evidence: test path=package.json command="npm run build"`,
			wantStatus: StatusRewritten,
			wantReason: "quoted command tail",
		},
		{
			name:       "go command anchors at go.mod",
			input:      "go test ./...",
			wantText:   `evidence: test path=go.mod command="go test ./..."`,
			wantStatus: StatusRewritten,
		},
		{
			name:       "missing anchor needs review",
			input:      "cargo test",
			wantText:   `evidence: test path=Cargo.toml command="cargo test"`,
			wantStatus: StatusNeedsReview,
			wantReason: "no anchor file found",
		},
		{
			name:       "command written as path",
			input:      `evidence: test path="npm test"`,
			wantText:   `evidence: test path=package.json command="npm test"`,
			wantStatus: StatusRewritten,
			wantReason: "path held a command",
		},
		{
			name:       "legacy file_exists",
			input:      "evidence: file_exists path=src/auth.ts",
			wantText:   "evidence: code path=src/auth.ts",
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy file_exists for a missing doc",
			input:      "evidence: file_exists path=docs/guide.md",
			wantText:   "evidence: docs path=docs/guide.md",
			wantStatus: StatusNeedsReview,
			wantReason: "does not exist",
		},
		{
			name:       "legacy test_exists",
			input:      "evidence: test_exists path=tests/auth.test.ts name=login",
			wantText:   "evidence: test path=tests/auth.test.ts contains=login",
			wantStatus: StatusNeedsReview,
		},
		{
			name:       "legacy api_route with file",
			input:      "evidence: api_route method=GET path=/api/users file=src/auth.ts",
			wantText:   "evidence: code path=src/auth.ts contains=/api/users",
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy api_route anchored at source root",
			input:      "evidence: api_route method=GET path=/api/users",
			wantText:   "evidence: code path=src/ contains=/api/users",
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy db_schema",
			input:      "evidence: db_schema table=users",
			wantText:   "evidence: code path=prisma/schema.prisma contains=users",
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy config_key",
			input:      "evidence: config_key file=config.yaml key=port",
			wantText:   "evidence: code path=config.yaml contains=port",
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy file_contains",
			input:      `evidence: file_contains path=src/auth.ts content="validateToken()"`,
			wantText:   `evidence: code path=src/auth.ts contains="validateToken()"`,
			wantStatus: StatusRewritten,
		},
		{
			name:       "legacy command",
			input:      `evidence: command cmd="npm test"`,
			wantText:   `evidence: test path=package.json command="npm test"`,
			wantStatus: StatusRewritten,
		},
		{
			name:       "descriptive text",
			input:      "evidence: Implemented the login flow",
			wantText:   `evidence: docs path=README.md contains="Implemented the login flow"`,
			wantStatus: StatusNeedsReview,
		},
		{
			name:       "stray tokens folded into contains",
			input:      "evidence: code path=src/auth.ts contains=validate token",
			wantText:   `evidence: code path=src/auth.ts contains="validate token"`,
			wantStatus: StatusRewritten,
			wantReason: "folded stray tokens into contains",
		},
		{
			name:       "unrecoverable stray tokens are wrapped",
			input:      "evidence: code path=src/auth.ts oops",
			wantText:   `evidence: test path=README.md command="code path=src/auth.ts oops"`,
			wantStatus: StatusNeedsReview,
		},
		{
			name:       "key from another type is dropped",
			input:      "evidence: code path=src/auth.ts heading=Intro",
			wantText:   "evidence: code path=src/auth.ts",
			wantStatus: StatusNeedsReview,
			wantReason: "dropped invalid keys: heading",
		},
		{
			name:       "traversal is rejected",
			input:      "evidence: file_exists path=../etc/passwd",
			wantText:   "evidence: file_exists path=../etc/passwd",
			wantStatus: StatusRejected,
			wantReason: "traversal",
		},
		{
			name:       "missing required key is rejected",
			input:      "evidence: code symbol=validateToken",
			wantText:   "evidence: code symbol=validateToken",
			wantStatus: StatusRejected,
			wantReason: "missing required key",
		},
		{
			name:       "empty payload",
			input:      "evidence:",
			wantText:   "evidence:",
			wantStatus: StatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := m.Canonicalize(tt.input)
			assert.Equal(t, tt.wantStatus, c.Status, c.Reason)
			assert.Equal(t, tt.wantText, c.Text)
			if tt.wantReason != "" {
				assert.Contains(t, c.Reason, tt.wantReason)
			}
			if c.Status != StatusRejected {
				_, err := hook.Parse(c.Text)
				assert.NoError(t, err, "candidate must parse strictly")
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	m, _ := newTestMigrator(t, Options{})
	inputs := []string{
		"npm run build",
		"evidence: file_exists path=src/auth.ts",
		"evidence: code path=src/auth.ts contains=validate token",
		"evidence: Implemented the login flow",
		"evidence: db_schema table=users",
	}
	for _, in := range inputs {
		first := m.Canonicalize(in)
		require.True(t, first.Status.Changed(), in)
		second := m.Canonicalize(first.Text)
		assert.Equal(t, StatusUnchanged, second.Status, in)
		assert.Equal(t, first.Text, second.Text, in)
	}
}

func TestCanonicalize_Normalize(t *testing.T) {
	input := "evidence: code symbol=validateToken path=src/auth.ts"

	m, _ := newTestMigrator(t, Options{})
	assert.Equal(t, StatusUnchanged, m.Canonicalize(input).Status)

	m, _ = newTestMigrator(t, Options{Normalize: true})
	c := m.Canonicalize(input)
	assert.Equal(t, StatusRewritten, c.Status)
	assert.Equal(t, "evidence: code path=src/auth.ts symbol=validateToken", c.Text)
}

func TestCanonicalize_DescriptionTruncated(t *testing.T) {
	m, _ := newTestMigrator(t, Options{})
	long := strings.Repeat("word ", 30)
	c := m.Canonicalize("evidence: " + long)
	require.Equal(t, StatusNeedsReview, c.Status)
	assert.LessOrEqual(t, len([]rune(c.Hook.Get("contains"))), DescriptionExcerptRunes)
}

func TestCanonicalize_WithoutSandbox(t *testing.T) {
	m := New(nil, Options{})
	c := m.Canonicalize("cargo test")
	assert.Equal(t, StatusRewritten, c.Status)
	assert.Equal(t, `evidence: test path=Cargo.toml command="cargo test"`, c.Text)

	c = m.Canonicalize("evidence: file_exists path=/etc/passwd")
	assert.Equal(t, StatusRejected, c.Status)
	assert.Contains(t, c.Reason, "absolute")
}

func TestCanonicalize_ReadAllowAnchors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, fixture)
	cfg := safety.DefaultConfig()
	cfg.ReadAllow = []string{"src"}
	sb, err := safety.New(root, cfg)
	require.NoError(t, err)
	m := New(sb, Options{})

	tests := []struct {
		name     string
		input    string
		wantText string
	}{
		{
			name:     "stray tokens",
			input:    "evidence: code path=src/a.ts some stray words",
			wantText: `evidence: test path=src/README.md command="code path=src/a.ts some stray words"`,
		},
		{
			name:     "command payload",
			input:    "npm run build",
			wantText: `evidence: test path=src/package.json command="npm run build"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := m.Canonicalize(tt.input)
			assert.Equal(t, StatusNeedsReview, c.Status, c.Reason)
			assert.Equal(t, tt.wantText, c.Text)
			_, err := hook.Parse(c.Text)
			assert.NoError(t, err)
		})
	}
}

func TestCanonicalize_AnchorOutOfScope(t *testing.T) {
	m := New(nil, Options{Safety: safety.Config{ReadAllow: []string{"../elsewhere"}}})

	c := m.Canonicalize("evidence: code path=src/a.ts some stray words")
	assert.Equal(t, StatusNeedsReview, c.Status)
	assert.Contains(t, c.Reason, "out of scope")
	assert.Equal(t, `evidence: test path=README.md command="code path=src/a.ts some stray words"`, c.Text)
	_, err := hook.Parse(c.Text)
	assert.NoError(t, err)
}

func TestClassifyPath(t *testing.T) {
	tests := map[string]hook.Type{
		"src/auth.ts":             hook.TypeCode,
		"src/auth.test.ts":        hook.TypeTest,
		"tests/unit/auth.ts":      hook.TypeTest,
		"pkg/auth_test.go":        hook.TypeTest,
		"web/__tests__/Login.tsx": hook.TypeTest,
		"docs/guide.md":           hook.TypeDocs,
		"README.rst":              hook.TypeDocs,
		"latest/notes.go":         hook.TypeCode,
	}
	for p, want := range tests {
		assert.Equal(t, want, ClassifyPath(p), p)
	}
}

func TestAnchorCandidates(t *testing.T) {
	assert.Equal(t, []string{"package.json"}, AnchorCandidates("npm"))
	assert.Equal(t, []string{"tsconfig.json", "package.json"}, AnchorCandidates("tsc"))
	assert.Equal(t, []string{"Makefile", "makefile"}, AnchorCandidates("make"))
	assert.Equal(t, []string{"README.md"}, AnchorCandidates("dotnet"))
	assert.Equal(t, []string{"README.md"}, AnchorCandidates("unknown-tool"))
	assert.Equal(t, "jest", toolName("./node_modules/.bin/jest --ci"))
	assert.Equal(t, "", toolName("code path=x"))
}

func TestRewriteSegments(t *testing.T) {
	tests := []struct {
		name string
		line string
		repl []string
		want string
	}{
		{
			name: "single hook",
			line: "  - evidence: file_exists path=a.ts",
			repl: []string{"code path=a.ts"},
			want: "  - evidence: code path=a.ts",
		},
		{
			name: "second hook in a table row",
			line: "| T-1 | evidence: code path=a.ts | evidence: command cmd=x |",
			repl: []string{"", "test path=package.json command=x"},
			want: "| T-1 | evidence: code path=a.ts | evidence: test path=package.json command=x |",
		},
		{
			name: "hook in a middle cell keeps the following cells",
			line: "| evidence: file_exists path=src/auth.ts | done |",
			repl: []string{"code path=src/auth.ts"},
			want: "| evidence: code path=src/auth.ts | done |",
		},
		{
			name: "quoted pipe stays inside the cell",
			line: `| evidence: file_exists path=a.ts contains="a | b" | note |`,
			repl: []string{`code path=a.ts contains="a | b"`},
			want: `| evidence: code path=a.ts contains="a | b" | note |`,
		},
		{
			name: "backticks and carriage return survive",
			line: "- `evidence: file_exists path=a.ts`\r",
			repl: []string{"code path=a.ts"},
			want: "- `evidence: code path=a.ts`\r",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewriteSegments(tt.line, tt.repl))
		})
	}
}

const planDoc = "# Tasks for auth\n" +
	"\n" +
	"spec_id: auth\n" +
	"\n" +
	"## Tasks\n" +
	"\n" +
	"- [x] TSK-1 Implement `src/auth.ts`\n" +
	"  - evidence: file_exists path=src/auth.ts\n" +
	"  - evidence: code path=src/auth.ts symbol=validateToken\n" +
	"- [ ] **TSK-2** Build pipeline\n" +
	"  - Code: src/auth.ts\n" +
	"- [ ] TSK-3 Docs | evidence: docs path=README.md | evidence: command cmd=\"npm test\" |\n" +
	"- [ ] TSK-4 Nothing yet\n"

const planWant = "# Tasks for auth\n" +
	"\n" +
	"spec_id: auth\n" +
	"\n" +
	"## Tasks\n" +
	"\n" +
	"- [x] TSK-1 Implement `src/auth.ts`\n" +
	"  - evidence: code path=src/auth.ts\n" +
	"  - evidence: code path=src/auth.ts symbol=validateToken\n" +
	"- [ ] TSK-2 Build pipeline\n" +
	"  - evidence: code path=src/auth.ts\n" +
	"- [ ] TSK-3 Docs | evidence: docs path=README.md | evidence: test path=package.json command=\"npm test\" |\n" +
	"- [ ] TSK-4 Nothing yet\n" +
	"  - evidence: test path=package.json command=\"npm run lint\"\n"

type fakeSource struct {
	payload string
	err     error
	asked   []string
}

func (f *fakeSource) Suggest(_ context.Context, task parser.TaskBlock) (string, error) {
	f.asked = append(f.asked, task.ID)
	return f.payload, f.err
}

func writePlanDoc(t *testing.T, sb *safety.Sandbox, content string) *parser.Document {
	t.Helper()
	path := filepath.Join(sb.Root(), "tasks.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	doc, err := parser.NewParser().ParseFile(path)
	require.NoError(t, err)
	return doc
}

func TestPlan(t *testing.T) {
	m, sb := newTestMigrator(t, Options{})
	doc := writePlanDoc(t, sb, planDoc)
	src := &fakeSource{payload: "npm run lint"}

	plan, err := m.Plan(context.Background(), doc, src)
	require.NoError(t, err)

	assert.Equal(t, planWant, plan.Updated)
	assert.Equal(t, []string{"TSK-4"}, src.asked)
	assert.Empty(t, plan.Rejected)

	lines := make([]int, 0, len(plan.Changes))
	for _, c := range plan.Changes {
		lines = append(lines, c.Line)
	}
	assert.Equal(t, []int{8, 10, 11, 12, 13}, lines)
	assert.True(t, plan.Changes[4].Inserted)

	assert.Contains(t, plan.Diff, "-  - evidence: file_exists path=src/auth.ts\n")
	assert.Contains(t, plan.Diff, "+  - evidence: code path=src/auth.ts\n")
	assert.True(t, strings.HasPrefix(plan.Diff, "--- a/"))
}

func TestPlan_CanonicalDocumentIsEmpty(t *testing.T) {
	m, sb := newTestMigrator(t, Options{})
	doc := writePlanDoc(t, sb, "## Tasks\n\n- [ ] T-1 Auth\n  - evidence: code path=src/auth.ts\n")

	plan, err := m.Plan(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Changes)
	assert.Empty(t, plan.Diff)
}

func TestPlan_RejectedLinesUnchanged(t *testing.T) {
	m, sb := newTestMigrator(t, Options{})
	content := "## Tasks\n\n- [ ] T-1 Auth\n  - evidence: file_exists path=../secret\n"
	doc := writePlanDoc(t, sb, content)

	plan, err := m.Plan(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Equal(t, content, plan.Updated)
	require.Len(t, plan.Rejected, 1)
	assert.Equal(t, 4, plan.Rejected[0].Line)
	assert.Equal(t, "T-1", plan.Rejected[0].TaskID)
}

func TestPlan_TableCells(t *testing.T) {
	m, sb := newTestMigrator(t, Options{})

	canonical := "## Tasks\n- [x] T-1 Auth\n| evidence: code path=src/auth.ts symbol=validateToken | done |\n"
	plan, err := m.Plan(context.Background(), writePlanDoc(t, sb, canonical), nil)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, canonical, plan.Updated)

	legacy := "## Tasks\n- [x] T-1 Auth\n| evidence: file_exists path=src/auth.ts | done |\n"
	plan, err = m.Plan(context.Background(), writePlanDoc(t, sb, legacy), nil)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "evidence: file_exists path=src/auth.ts", plan.Changes[0].Old)
	assert.Equal(t, "## Tasks\n- [x] T-1 Auth\n| evidence: code path=src/auth.ts | done |\n", plan.Updated)
}

func TestPlan_HookSource(t *testing.T) {
	t.Run("error is recorded", func(t *testing.T) {
		m, sb := newTestMigrator(t, Options{})
		doc := writePlanDoc(t, sb, "## Tasks\n\n- [ ] T-1 Auth\n")
		plan, err := m.Plan(context.Background(), doc, &fakeSource{err: errors.New("offline")})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
		require.Len(t, plan.Rejected, 1)
		assert.Contains(t, plan.Rejected[0].Reason, "offline")
	})

	t.Run("unsafe output is rejected", func(t *testing.T) {
		m, sb := newTestMigrator(t, Options{})
		doc := writePlanDoc(t, sb, "## Tasks\n\n- [ ] T-1 Auth\n")
		plan, err := m.Plan(context.Background(), doc, &fakeSource{payload: "code path=/etc/passwd"})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
		require.Len(t, plan.Rejected, 1)
	})

	t.Run("canceled context stops planning", func(t *testing.T) {
		m, sb := newTestMigrator(t, Options{})
		doc := writePlanDoc(t, sb, "## Tasks\n\n- [ ] T-1 Auth\n")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Plan(ctx, doc, &fakeSource{payload: "npm test"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

func TestApply(t *testing.T) {
	m, sb := newTestMigrator(t, Options{Now: fixedNow})
	doc := writePlanDoc(t, sb, planDoc)
	plan, err := m.Plan(context.Background(), doc, nil)
	require.NoError(t, err)

	res, err := m.Apply(plan)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, doc.Path+".bak-20261018T120000Z", res.Backup)

	got, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, plan.Updated, string(got))

	backup, err := os.ReadFile(res.Backup)
	require.NoError(t, err)
	assert.Equal(t, planDoc, string(backup))

	// The document no longer matches the plan's original.
	_, err = m.Apply(plan)
	assert.ErrorIs(t, err, ErrStalePlan)
}

func TestApply_EmptyPlanWritesNothing(t *testing.T) {
	m, sb := newTestMigrator(t, Options{Now: fixedNow})
	doc := writePlanDoc(t, sb, "## Tasks\n\n- [ ] T-1 Auth\n  - evidence: code path=src/auth.ts\n")
	plan, err := m.Plan(context.Background(), doc, nil)
	require.NoError(t, err)

	res, err := m.Apply(plan)
	require.NoError(t, err)
	assert.False(t, res.Written)
	_, err = os.Stat(m.BackupPath(doc.Path))
	assert.True(t, os.IsNotExist(err))
}

func TestApply_RestoresOnFailure(t *testing.T) {
	m, sb := newTestMigrator(t, Options{Now: fixedNow})
	doc := writePlanDoc(t, sb, planDoc)
	plan, err := m.Plan(context.Background(), doc, nil)
	require.NoError(t, err)

	errDisk := errors.New("disk full")
	m.writeFile = func(path string, data []byte, perm os.FileMode) error {
		if path == doc.Path {
			return errDisk
		}
		return atomicWrite(path, data, perm)
	}

	_, err = m.Apply(plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "restored")

	got, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, planDoc, string(got))
}

func TestApply_RequiresRoot(t *testing.T) {
	_, err := New(nil, Options{}).Apply(&Plan{Path: "tasks.md", Original: "a", Updated: "b"})
	assert.ErrorIs(t, err, ErrNoProjectRoot)
}

func TestApply_WriteDeny(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"docs/tasks.md": "x\n"})
	cfg := safety.DefaultConfig()
	cfg.WriteDeny = []string{"docs"}
	sb, err := safety.New(root, cfg)
	require.NoError(t, err)

	plan := &Plan{Path: filepath.Join(sb.Root(), "docs", "tasks.md"), Original: "x\n", Updated: "y\n"}
	_, err = New(sb, Options{}).Apply(plan)
	var se *safety.ScopeError
	assert.ErrorAs(t, err, &se)
}

func TestUnifiedDiff(t *testing.T) {
	assert.Empty(t, UnifiedDiff("a", "b", "same\n", "same\n"))

	got := UnifiedDiff("a/t.md", "b/t.md", "x\ny\nz\n", "x\nY\nz\n")
	want := "--- a/t.md\n+++ b/t.md\n@@ -1,3 +1,3 @@\n x\n-y\n+Y\n z\n"
	assert.Equal(t, want, got)

	got = UnifiedDiff("a", "b", "a\n", "a\nb\n")
	assert.Equal(t, "--- a\n+++ b\n@@ -1 +1,2 @@\n a\n+b\n", got)
}

func TestComputeHunks_SplitsDistantChanges(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		oldLines = append(oldLines, line)
		if i == 1 || i == 18 {
			line = strings.ToUpper(line)
		}
		newLines = append(newLines, line)
	}
	hunks := ComputeHunks(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n", DiffContext)
	require.Len(t, hunks, 2)
	assert.Equal(t, 1, hunks[0].OldStart)
	assert.Equal(t, 16, hunks[1].OldStart)
}
