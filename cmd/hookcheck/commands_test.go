package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/hookcheck/internal/config"
	"github.com/boshu2/hookcheck/internal/migrate"
	"github.com/boshu2/hookcheck/internal/storage"
	"github.com/boshu2/hookcheck/internal/verify"
)

const legacyDoc = `## Tasks

- [ ] TSK-1 Auth service
  - evidence: file_exists path=src/auth.ts
- [ ] TSK-2 Build
  - evidence: code path=src/auth.ts symbol=validateToken
`

func TestRunValidate(t *testing.T) {
	authProject(t, legacyDoc+"- [ ] TSK-3 Escape\n  - evidence: code path=/etc/passwd\n")

	stdout, _, err := runCommand(t, runValidate, "specs/auth/tasks.md")

	var ee *exitError
	require.True(t, errors.As(err, &ee), "want exitError, got %v", err)
	assert.Contains(t, ee.reason, "2 invalid evidence hook(s)")
	assert.Contains(t, stdout, "EVIDENCE HOOK VALIDATION REPORT")
	assert.Contains(t, stdout, "File: specs/auth/tasks.md")
	assert.Contains(t, stdout, "Total evidence hooks: 3")
	assert.Contains(t, stdout, "Invalid hooks: 2")
	assert.Contains(t, stdout, "Line 4:")
	assert.Contains(t, stdout, "hookcheck migrate")
	assert.Contains(t, stdout, "code  path (required), contains, regex, symbol")
	assert.Contains(t, stdout, "ui    screen (required),")
	assert.NotContains(t, stdout, "All evidence hooks are valid")
}

func TestRunValidate_CleanJSON(t *testing.T) {
	authProject(t, tasksDoc)
	output = "json"

	stdout, _, err := runCommand(t, runValidate, "specs/auth/tasks.md")
	require.NoError(t, err)

	var rep verify.LintReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep), stdout)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Valid)
	assert.Equal(t, "TSK-1", rep.Hooks[0].TaskID)
}

func TestRunMigrate_DryRun(t *testing.T) {
	root := authProject(t, legacyDoc)

	stdout, _, err := runCommand(t, runMigrate, "specs/auth/tasks.md")
	require.NoError(t, err)
	assert.Contains(t, stdout, "-  - evidence: file_exists path=src/auth.ts")
	assert.Contains(t, stdout, "+  - evidence: code path=src/auth.ts")
	assert.Contains(t, stdout, "1 change(s), 0 need review, 0 rejected")
	assert.Contains(t, stdout, "Dry run")

	got, err := os.ReadFile(filepath.Join(root, "specs", "auth", "tasks.md"))
	require.NoError(t, err)
	assert.Equal(t, legacyDoc, string(got), "dry run must not write")
}

func TestRunMigrate_Apply(t *testing.T) {
	root := authProject(t, legacyDoc)
	migrateApply = true
	output = "json"

	stdout, _, err := runCommand(t, runMigrate, "specs/auth/tasks.md")
	require.NoError(t, err)

	var res struct {
		Plan    migrate.Plan        `json:"plan"`
		Applied migrate.ApplyResult `json:"applied"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res), stdout)
	assert.True(t, res.Applied.Written)
	assert.Len(t, res.Plan.Changes, 1)

	doc := filepath.Join(root, "specs", "auth", "tasks.md")
	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Contains(t, string(got), "evidence: code path=src/auth.ts\n")
	assert.NotContains(t, string(got), "file_exists")

	backups, err := filepath.Glob(doc + ".bak-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, legacyDoc, string(old))
}

func TestRunMigrate_Canonical(t *testing.T) {
	authProject(t, tasksDoc)

	stdout, _, err := runCommand(t, runMigrate, "specs/auth/tasks.md")
	require.NoError(t, err)
	assert.Equal(t, "specs/auth/tasks.md: all evidence hooks are canonical\n", stdout)
}

func TestRunCanonicalize(t *testing.T) {
	authProject(t, tasksDoc)

	stdout, stderr, err := runCommand(t, runCanonicalize, "npm", "run", "build")
	require.NoError(t, err)
	assert.Equal(t, "evidence: test path=package.json command=\"npm run build\"\n", stdout)
	assert.Contains(t, stderr, string(migrate.StatusRewritten))
}

func TestRunCanonicalize_Rejected(t *testing.T) {
	authProject(t, tasksDoc)

	_, _, err := runCommand(t, runCanonicalize, "evidence: file_exists path=../etc/passwd")
	var ee *exitError
	require.True(t, errors.As(err, &ee), "want exitError, got %v", err)
	assert.Contains(t, ee.reason, "payload rejected")
}

func TestRunReport_ListAndShow(t *testing.T) {
	authProject(t, tasksDoc)
	output = "json"
	_, _, err := runCommand(t, runVerify, "specs/auth/tasks.md")
	require.NoError(t, err)

	stdout, _, err := runCommand(t, runReportList)
	require.NoError(t, err)
	var runs []storage.IndexEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs), stdout)
	require.Len(t, runs, 1)
	assert.Equal(t, "specs/auth/tasks.md", runs[0].TasksPath)
	assert.Equal(t, 1, runs[0].Verified)

	prefix := runs[0].RunID[:8]

	stdout, _, err = runCommand(t, runReportShow, prefix)
	require.NoError(t, err)
	var rep verify.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, runs[0].RunID, rep.RunID)

	output = "table"
	reportRaw = true
	stdout, _, err = runCommand(t, runReportShow, prefix)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "# Task Verification Report: auth-core"), stdout)

	reportRaw = false
	stdout, _, err = runCommand(t, runReportShow, prefix)
	require.NoError(t, err)
	assert.Contains(t, stdout, "TSK-1")

	stdout, _, err = runCommand(t, runReportList)
	require.NoError(t, err)
	assert.Contains(t, stdout, runs[0].RunID[:8])

	_, _, err = runCommand(t, runReportShow, "nope")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestRunReport_Empty(t *testing.T) {
	authProject(t, tasksDoc)

	stdout, _, err := runCommand(t, runReportList)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs in")
}

func TestRunConfigShow(t *testing.T) {
	root := authProject(t, tasksDoc)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hookcheck"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hookcheck", "config.yaml"), []byte("reports_dir: out/reports\n"), 0o644))
	t.Setenv(config.EnvMaxSeconds, "5")
	output = "json"

	stdout, _, err := runCommand(t, runConfigShow)
	require.NoError(t, err)

	var rc struct {
		Output     config.Resolved `json:"output"`
		ReportsDir config.Resolved `json:"reports_dir"`
		MaxSeconds config.Resolved `json:"max_seconds"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rc), stdout)
	assert.Equal(t, config.SourceFlag, rc.Output.Source)
	assert.Equal(t, "out/reports", rc.ReportsDir.Value)
	assert.Equal(t, config.SourceProject, rc.ReportsDir.Source)
	assert.Equal(t, config.SourceEnv, rc.MaxSeconds.Source)

	output = ""
	stdout, _, err = runCommand(t, runConfigShow)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Project root:")
	assert.Contains(t, stdout, "reports_dir")
	assert.Contains(t, stdout, ".hookcheck/config")
}

func TestColorDiff_PlainWithoutTerminal(t *testing.T) {
	diff := "--- a/t.md\n+++ b/t.md\n@@ -1 +1 @@\n-old\n+new\n"
	assert.Equal(t, diff, colorDiff(diff))
}

func TestEncodeStructured(t *testing.T) {
	var b strings.Builder
	handled, err := encodeStructured(&b, "table", 1)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, b.String())

	handled, err = encodeStructured(&b, "yaml", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "a: 1\n", b.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteMigrateText_WriteError(t *testing.T) {
	change := migrate.Change{
		Line:   4,
		TaskID: "TSK-1",
		Status: migrate.StatusRewritten,
		Old:    "evidence: file_exists path=src/auth.ts",
		New:    "evidence: code path=src/auth.ts",
	}
	result := migrateOutput{Plan: &migrate.Plan{
		Original: legacyDoc,
		Updated:  strings.Replace(legacyDoc, "file_exists", "code", 1),
		Changes:  []migrate.Change{change},
	}}

	err := writeMigrateText(failingWriter{}, "tasks.md", result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render plan table")
	assert.Contains(t, err.Error(), "disk full")

	err = writeMigrateText(failingWriter{}, "tasks.md", migrateOutput{Plan: &migrate.Plan{}})
	assert.Error(t, err)
}
