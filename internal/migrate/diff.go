package migrate

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffContext is the number of unchanged lines shown around each change.
const DiffContext = 3

type opKind int

const (
	opContext opKind = iota
	opAdded
	opRemoved
)

// diffOp is one line of a line-level diff.
type diffOp struct {
	kind    opKind
	content string
}

// Hunk is a group of nearby changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []string
}

// UnifiedDiff renders a unified diff between two versions of a document.
// It returns "" when the texts are equal.
func UnifiedDiff(oldName, newName, oldText, newText string) string {
	if oldText == newText {
		return ""
	}
	hunks := ComputeHunks(oldText, newText, DiffContext)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%s +%s @@\n", hunkRange(h.OldStart, h.OldCount), hunkRange(h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ComputeHunks diffs oldText and newText line by line.
func ComputeHunks(oldText, newText string, context int) []Hunk {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	// Line-level reduction keeps hunks aligned to whole lines.
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	return groupHunks(toOps(diffs), context)
}

func toOps(diffs []diffmatchpatch.Diff) []diffOp {
	var ops []diffOp
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		kind := opContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = opAdded
		case diffmatchpatch.DiffDelete:
			kind = opRemoved
		}
		for _, l := range lines {
			ops = append(ops, diffOp{kind: kind, content: l})
		}
	}
	return ops
}

// groupHunks merges changes closer than 2*context lines into one hunk.
func groupHunks(ops []diffOp, context int) []Hunk {
	var changes []int
	for i, op := range ops {
		if op.kind != opContext {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	type span struct{ start, end int }
	var spans []span
	cur := span{start: max(changes[0]-context, 0), end: min(changes[0]+context, len(ops)-1)}
	for _, c := range changes[1:] {
		start := max(c-context, 0)
		if start <= cur.end+1 {
			cur.end = min(c+context, len(ops)-1)
			continue
		}
		spans = append(spans, cur)
		cur = span{start: start, end: min(c+context, len(ops)-1)}
	}
	spans = append(spans, cur)

	// oldAt[i] and newAt[i] count the lines before ops[i] on each side.
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, op := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if op.kind != opAdded {
			oldAt[i+1]++
		}
		if op.kind != opRemoved {
			newAt[i+1]++
		}
	}

	hunks := make([]Hunk, 0, len(spans))
	for _, s := range spans {
		h := Hunk{
			OldStart: oldAt[s.start] + 1,
			OldCount: oldAt[s.end+1] - oldAt[s.start],
			NewStart: newAt[s.start] + 1,
			NewCount: newAt[s.end+1] - newAt[s.start],
		}
		for _, op := range ops[s.start : s.end+1] {
			switch op.kind {
			case opAdded:
				h.Lines = append(h.Lines, "+"+op.content)
			case opRemoved:
				h.Lines = append(h.Lines, "-"+op.content)
			default:
				h.Lines = append(h.Lines, " "+op.content)
			}
		}
		// An empty side starts at the line before the hunk.
		if h.OldCount == 0 {
			h.OldStart--
		}
		if h.NewCount == 0 {
			h.NewStart--
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func hunkRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
