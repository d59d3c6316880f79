package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/boshu2/hookcheck/internal/storage"
	"github.com/boshu2/hookcheck/internal/verify"
)

func TestTable_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "TASK", "HOOKS", "STATUS")
	tbl.AddRow("TSK-1", "2", "verified")
	tbl.AddRow("TSK-22", "0", "missing_hooks")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "----") {
		t.Errorf("missing separator:\n%s", out)
	}
	// Columns align on the widest cell.
	if strings.Index(lines[2], "verified") != strings.Index(lines[3], "missing_hooks") {
		t.Errorf("status column not aligned:\n%s", out)
	}
}

func TestTable_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "A", "B")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output for table with no rows, got:\n%s", buf.String())
	}
}

func TestTable_MaxWidth(t *testing.T) {
	tests := []struct {
		name  string
		width int
		value string
		want  string
	}{
		{"truncated", 8, "abcdefghijklmnop", "abcde..."},
		{"fits", 8, "short", "short"},
		{"tiny limit", 2, "abcdef", "ab"},
		{"runes not bytes", 5, "ééééééé", "éé..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tbl := NewTable(&buf, "TITLE", "X")
			tbl.SetMaxWidth(0, tt.width)
			tbl.AddRow(tt.value, "x")
			if err := tbl.Render(); err != nil {
				t.Fatalf("Render: %v", err)
			}
			lines := strings.Split(buf.String(), "\n")
			if got := strings.Fields(lines[2])[0]; got != tt.want {
				t.Errorf("cell = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTable_MissingValues(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "A", "B", "C")
	tbl.AddRow("only-one")
	tbl.AddRow("a", "b", "c", "ignored")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "only-one") {
		t.Errorf("expected value in output:\n%s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("extra values should be dropped:\n%s", out)
	}
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTableFormatter().Format(&buf, sampleReport()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"TASK", "STATUS",
		"TSK-1", "TSK-2", "TSK-3",
		"(checked)",
		"3 tasks: 1 verified, 0 not verified, 0 needs manual, 1 missing hooks, 1 invalid scope",
		"structural error: line 4: duplicate task ID TSK-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStyleStatus(t *testing.T) {
	for _, s := range verify.Statuses {
		if !strings.Contains(StyleStatus(s), string(s)) {
			t.Errorf("StyleStatus(%q) lost the status text", s)
		}
	}
	if got := StyleStatus("custom"); got != "custom" {
		t.Errorf("StyleStatus(custom) = %q", got)
	}
}

func TestRunsTable_NewestFirst(t *testing.T) {
	runs := []storage.IndexEntry{
		{RunID: "old", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), TasksPath: "a.md", Tasks: 1},
		{RunID: "new", Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), TasksPath: "b.md", Tasks: 2},
	}
	var buf bytes.Buffer
	if err := RunsTable(&buf, runs); err != nil {
		t.Fatalf("RunsTable: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "new") > strings.Index(out, "old") {
		t.Errorf("newest run should be listed first:\n%s", out)
	}
	if !strings.Contains(out, "2026-02-01 00:00") {
		t.Errorf("missing formatted date:\n%s", out)
	}
}
