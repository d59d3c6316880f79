// Package parser extracts task blocks and their evidence lines from markdown
// task documents.
package parser

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// DefaultMaxLineBytes bounds a single document line.
const DefaultMaxLineBytes = 1024 * 1024

// DefaultTasksHeading is the section every task document must contain once.
const DefaultTasksHeading = "Tasks"

// Structural error kinds.
const (
	ErrKindMissingTasks   = "missing_tasks_section"
	ErrKindDuplicateTasks = "duplicate_tasks_section"
	ErrKindDuplicateID    = "duplicate_task_id"
)

// evidenceToken marks a raw evidence line. Matching is case-sensitive so
// legacy "**Evidence:**" headers are not captured.
const evidenceToken = "evidence:"

var (
	taskLineRe = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.+?)\s*$`)
	headingRe  = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.*?)\s*#*\s*$`)
	taskIDRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
	metaLineRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)\s*:\s*(.+?)\s*$`)
	fenceRe    = regexp.MustCompile("^\\s*(```|~~~)")
)

// Parser scans task documents.
type Parser struct {
	// MaxLineBytes is the longest line the scanner accepts.
	MaxLineBytes int

	// TasksHeading is the level-2 heading that opens the task section.
	TasksHeading string
}

// NewParser creates a parser with default settings.
func NewParser() *Parser {
	return &Parser{
		MaxLineBytes: DefaultMaxLineBytes,
		TasksHeading: DefaultTasksHeading,
	}
}

// EvidenceLine is one raw evidence occurrence.
type EvidenceLine struct {
	Text string `json:"text" yaml:"text"`
	Line int    `json:"line" yaml:"line"`
}

// TaskBlock is one checklist task and the lines that belong to it.
type TaskBlock struct {
	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Checked  bool           `json:"checked" yaml:"checked"`
	Line     int            `json:"line" yaml:"line"`
	Section  string         `json:"section,omitempty" yaml:"section,omitempty"`
	Evidence []EvidenceLine `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Legacy   []LegacyMarker `json:"legacy,omitempty" yaml:"legacy,omitempty"`
}

// StructuralError is a document-level problem. It never stops extraction.
type StructuralError struct {
	Kind    string `json:"kind" yaml:"kind"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s (%s)", e.Line, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Document is the parsed form of one task document.
type Document struct {
	Path             string             `json:"path,omitempty" yaml:"path,omitempty"`
	Meta             map[string]string  `json:"meta,omitempty" yaml:"meta,omitempty"`
	Tasks            []TaskBlock        `json:"tasks" yaml:"tasks"`
	StructuralErrors []*StructuralError `json:"structural_errors,omitempty" yaml:"structural_errors,omitempty"`

	// Orphans are evidence lines that appear outside any task block.
	Orphans []EvidenceLine `json:"orphans,omitempty" yaml:"orphans,omitempty"`

	// Lines is the original text split on "\n", kept for rewriting.
	Lines []string `json:"-" yaml:"-"`

	// TrailingNewline records whether the source ended with a newline.
	TrailingNewline bool `json:"-" yaml:"-"`

	// Checksum is the first 16 hex chars of the SHA256 of the source.
	Checksum string `json:"checksum" yaml:"checksum"`
}

// SpecID returns the spec_id metadata value, or "unknown".
func (d *Document) SpecID() string {
	if v := d.Meta["spec_id"]; v != "" {
		return v
	}
	return "unknown"
}

// EvidenceCount returns the number of evidence lines across all tasks.
func (d *Document) EvidenceCount() int {
	n := 0
	for _, t := range d.Tasks {
		n += len(t.Evidence)
	}
	return n
}

// Text reassembles Lines into the document source.
func (d *Document) Text() string {
	s := strings.Join(d.Lines, "\n")
	if d.TrailingNewline {
		s += "\n"
	}
	return s
}

// Parse reads a task document from r. Lines are split on "\n" only, so
// carriage returns survive a Text round trip.
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return p.parseBytes(data)
}

// ParseString parses an in-memory document.
func (p *Parser) ParseString(s string) (*Document, error) {
	return p.parseBytes([]byte(s))
}

func (p *Parser) parseBytes(data []byte) (*Document, error) {
	doc := &Document{Meta: make(map[string]string)}

	sum := sha256.Sum256(data)
	doc.Checksum = hex.EncodeToString(sum[:8])

	text := string(data)
	doc.TrailingNewline = strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")
	if text != "" || doc.TrailingNewline {
		doc.Lines = strings.Split(text, "\n")
	}

	maxLine := p.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	for i, line := range doc.Lines {
		if len(line) > maxLine {
			return nil, fmt.Errorf("line %d: %w", i+1, bufio.ErrTooLong)
		}
	}

	p.extract(doc)
	return doc, nil
}

// ParseFile parses a task document by path.
func (p *Parser) ParseFile(path string) (doc *Document, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	doc, err = p.parseBytes(data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// scanState carries the walk over one document.
type scanState struct {
	doc       *Document
	current   *TaskBlock
	section   string
	inFence   bool
	tasksSeen int
	ids       map[string]int
}

func (p *Parser) extract(doc *Document) {
	st := &scanState{doc: doc, ids: make(map[string]int)}
	heading := p.TasksHeading
	if heading == "" {
		heading = DefaultTasksHeading
	}

	for i, rawLine := range doc.Lines {
		lineNum := i + 1
		line := strings.TrimRight(rawLine, "\r")

		if fenceRe.MatchString(line) {
			st.inFence = !st.inFence
			continue
		}
		if st.inFence {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			st.flush()
			st.section = m[2]
			if len(m[1]) == 2 && strings.EqualFold(m[2], heading) {
				st.tasksSeen++
				if st.tasksSeen == 2 {
					doc.StructuralErrors = append(doc.StructuralErrors, &StructuralError{
						Kind: ErrKindDuplicateTasks, Line: lineNum,
						Message: fmt.Sprintf("duplicate ## %s section", heading),
					})
				}
			}
			continue
		}

		if st.tasksSeen == 0 {
			parseMetaLine(doc, i, line)
		}

		if m := taskLineRe.FindStringSubmatch(line); m != nil {
			if task, ok := newTaskBlock(m, lineNum, st.section); ok {
				st.flush()
				st.current = task
				if first, dup := st.ids[task.ID]; dup {
					doc.StructuralErrors = append(doc.StructuralErrors, &StructuralError{
						Kind: ErrKindDuplicateID, Line: lineNum,
						Message: fmt.Sprintf("duplicate task ID %s (first defined on line %d)", task.ID, first),
					})
				} else {
					st.ids[task.ID] = lineNum
				}
				// Evidence written on the task line itself still counts.
				st.captureEvidence(line[strings.Index(line, "]")+1:], lineNum)
				continue
			}
		}

		st.captureEvidence(line, lineNum)
		if st.current != nil {
			if marker, ok := DetectLegacy(line, lineNum); ok {
				st.current.Legacy = append(st.current.Legacy, marker)
			}
		}
	}
	st.flush()

	if st.tasksSeen == 0 {
		doc.StructuralErrors = append([]*StructuralError{{
			Kind:    ErrKindMissingTasks,
			Message: fmt.Sprintf("no ## %s section", heading),
		}}, doc.StructuralErrors...)
	}
}

func (st *scanState) flush() {
	if st.current != nil {
		st.doc.Tasks = append(st.doc.Tasks, *st.current)
		st.current = nil
	}
}

func (st *scanState) captureEvidence(line string, lineNum int) {
	for _, text := range SplitEvidence(line) {
		ev := EvidenceLine{Text: text, Line: lineNum}
		if st.current == nil {
			st.doc.Orphans = append(st.doc.Orphans, ev)
			continue
		}
		st.current.Evidence = append(st.current.Evidence, ev)
	}
}

// newTaskBlock builds a block from a task-line match. ok is false when the
// first token does not look like a task ID.
func newTaskBlock(m []string, lineNum int, section string) (*TaskBlock, bool) {
	rest := strings.TrimSpace(m[2])
	idTok, title, _ := strings.Cut(rest, " ")

	var legacy []LegacyMarker
	if unbolded, ok := unbold(idTok); ok {
		idTok = unbolded
		legacy = append(legacy, LegacyMarker{Kind: LegacyBoldID, Line: lineNum, Text: rest})
	}
	idTok = strings.TrimSuffix(idTok, ":")
	if !taskIDRe.MatchString(idTok) {
		return nil, false
	}

	title = strings.TrimSpace(title)
	if i := strings.Index(title, evidenceToken); i >= 0 {
		title = strings.TrimSpace(strings.TrimRight(title[:i], " -|`"))
	}

	return &TaskBlock{
		ID:      idTok,
		Title:   title,
		Checked: m[1] != " ",
		Line:    lineNum,
		Section: section,
		Legacy:  legacy,
	}, true
}

func unbold(tok string) (string, bool) {
	t := strings.TrimSuffix(tok, ":")
	for _, mark := range []string{"**", "__"} {
		if strings.HasPrefix(t, mark) && strings.HasSuffix(t, mark) && len(t) > 2*len(mark) {
			return strings.TrimSuffix(strings.TrimPrefix(t, mark), mark), true
		}
	}
	return tok, false
}

// SplitEvidence returns every "evidence:" occurrence on line as its own
// payload, trimmed of surrounding pipes and backticks.
func SplitEvidence(line string) []string {
	spans := EvidenceSpans(line)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		body := strings.Trim(line[sp.Start:sp.End], " \t|`")
		out = append(out, strings.TrimSpace(evidenceToken+" "+body))
	}
	return out
}

// Span is the byte range of one evidence payload on a line, starting right
// after the "evidence:" token.
type Span struct {
	Start, End int
}

// EvidenceSpans locates the payload of every "evidence:" token on line. A
// payload runs to the next token; in a table row it also stops at the next
// unquoted cell separator.
func EvidenceSpans(line string) []Span {
	table := strings.HasPrefix(strings.TrimSpace(line), "|")
	var spans []Span
	for i := 0; ; {
		k := strings.Index(line[i:], evidenceToken)
		if k < 0 {
			return spans
		}
		start := i + k + len(evidenceToken)
		end := len(line)
		if next := strings.Index(line[start:], evidenceToken); next >= 0 {
			end = start + next
		}
		if table {
			if c := cellEnd(line[start:end]); c >= 0 {
				end = start + c
			}
		}
		spans = append(spans, Span{Start: start, End: end})
		i = end
	}
}

// cellEnd returns the index of the first pipe in s outside quotes, or -1.
// An escaped pipe (\|) belongs to the cell. When a quote never closes, the
// first unescaped pipe ends the cell.
func cellEnd(s string) int {
	var quote byte
	first := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && quote != '\'':
			i++
		case c == '|' && first < 0:
			first = i
			if quote == 0 {
				return i
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '|':
			return i
		}
	}
	if quote != 0 {
		return first
	}
	return -1
}

// parseMetaLine collects header metadata from key: value lines and two-column
// table rows above the task section.
func parseMetaLine(doc *Document, idx int, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed == "---" {
		return
	}
	if strings.HasPrefix(trimmed, "|") {
		cells := tableCells(trimmed)
		if len(cells) != 2 || isSeparatorRow(cells) {
			return
		}
		// The header row of a table is followed by a separator row.
		if idx+1 < len(doc.Lines) {
			if next := tableCells(strings.TrimSpace(doc.Lines[idx+1])); len(next) == 2 && isSeparatorRow(next) {
				return
			}
		}
		if key := metaKey(cells[0]); key != "" && cells[1] != "" {
			doc.Meta[key] = strings.Trim(cells[1], "`")
		}
		return
	}
	if m := metaLineRe.FindStringSubmatch(trimmed); m != nil && m[1] != "evidence" {
		key := metaKey(m[1])
		if _, exists := doc.Meta[key]; !exists {
			doc.Meta[key] = m[2]
		}
	}
}

func tableCells(row string) []string {
	if !strings.HasPrefix(row, "|") {
		return nil
	}
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")
	cells := strings.Split(row, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func metaKey(s string) string {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "*_`:"))
	s = strings.Join(strings.Fields(s), "_")
	return strings.ReplaceAll(s, "-", "_")
}
