package formatter

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/boshu2/hookcheck/internal/storage"
	"github.com/boshu2/hookcheck/internal/verify"
)

// Table formats columnar output using tabwriter.
type Table struct {
	w             *tabwriter.Writer
	headers       []string
	maxWidth      map[int]int // column index -> max width (0 = unlimited)
	headerWritten bool
}

// NewTable creates a table that writes to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:        tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers:  headers,
		maxWidth: make(map[int]int),
	}
}

// SetMaxWidth sets the maximum display width for a column (0-indexed).
// Values exceeding the limit are truncated with "...".
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.maxWidth[col] = width
	return t
}

// AddRow appends a data row. Extra values beyond the header count are ignored;
// missing values are filled with empty strings.
func (t *Table) AddRow(values ...string) {
	if !t.headerWritten {
		t.headerWritten = true
		t.writeHeaderAndSeparator()
	}

	cells := make([]string, len(t.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = t.truncate(i, values[i])
		}
	}

	for i, cell := range cells {
		if i > 0 {
			//nolint:errcheck // tabwriter output to stdout
			fmt.Fprint(t.w, "\t")
		}
		//nolint:errcheck // tabwriter output to stdout
		fmt.Fprint(t.w, cell)
	}
	//nolint:errcheck // tabwriter output to stdout
	fmt.Fprintln(t.w)
}

// Render flushes the underlying tabwriter. Must be called after all AddRow calls.
func (t *Table) Render() error {
	return t.w.Flush()
}

func (t *Table) writeHeaderAndSeparator() {
	for i, h := range t.headers {
		if i > 0 {
			//nolint:errcheck // tabwriter output to stdout
			fmt.Fprint(t.w, "\t")
		}
		//nolint:errcheck // tabwriter output to stdout
		fmt.Fprint(t.w, h)
	}
	//nolint:errcheck // tabwriter output to stdout
	fmt.Fprintln(t.w)

	for i, h := range t.headers {
		if i > 0 {
			//nolint:errcheck // tabwriter output to stdout
			fmt.Fprint(t.w, "\t")
		}
		//nolint:errcheck // tabwriter output to stdout
		fmt.Fprint(t.w, dashes(len(h)))
	}
	//nolint:errcheck // tabwriter output to stdout
	fmt.Fprintln(t.w)
}

func (t *Table) truncate(col int, s string) string {
	limit, ok := t.maxWidth[col]
	if !ok || limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// dashes returns a string of n dashes.
func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

// statusStyles colors the status column. lipgloss drops the color when
// stdout is not a terminal.
var statusStyles = map[verify.Status]lipgloss.Style{
	verify.StatusVerified:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	verify.StatusNotVerified:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	verify.StatusNeedsManual:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	verify.StatusMissingHooks: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	verify.StatusInvalidScope: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// StyleStatus renders a status with its color.
func StyleStatus(s verify.Status) string {
	if st, ok := statusStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}

// TableFormatter prints one row per task followed by the run totals.
type TableFormatter struct {
	// TitleWidth truncates long task titles.
	TitleWidth int
}

// NewTableFormatter creates a table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		TitleWidth: 48,
	}
}

// Format writes r as a table. The status column is last so its escape codes
// do not disturb the alignment.
func (tf *TableFormatter) Format(w io.Writer, r *verify.Report) error {
	tbl := NewTable(w, "TASK", "CONFIDENCE", "HOOKS", "TITLE", "STATUS")
	tbl.SetMaxWidth(3, tf.TitleWidth)
	for _, t := range r.Tasks {
		status := StyleStatus(t.Status)
		if t.CheckboxDrift {
			status += " (checked)"
		}
		tbl.AddRow(t.ID, string(t.Confidence), strconv.Itoa(len(t.Evidence)), t.Title, status)
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	tot := r.Totals
	//nolint:errcheck // summary output to stdout
	fmt.Fprintf(w, "\n%d tasks: %d verified, %d not verified, %d needs manual, %d missing hooks, %d invalid scope\n",
		tot.Tasks, tot.Verified, tot.NotVerified, tot.NeedsManual, tot.MissingHooks, tot.InvalidScope)
	if r.Budget.Exhausted {
		//nolint:errcheck // summary output to stdout
		fmt.Fprintf(w, "scan budget exceeded (%s)\n", r.Budget.Reason)
	}
	for _, se := range r.StructuralErrors {
		//nolint:errcheck // summary output to stdout
		fmt.Fprintf(w, "structural error: %s\n", se.Error())
	}
	return nil
}

// Extension returns the file extension for plain text.
func (tf *TableFormatter) Extension() string {
	return ".txt"
}

// RunsTable prints the run index, newest first.
func RunsTable(w io.Writer, runs []storage.IndexEntry) error {
	tbl := NewTable(w, "RUN", "DATE", "TASKS", "VERIFIED", "INVALID", "PATH")
	tbl.SetMaxWidth(5, 60)
	for i := len(runs) - 1; i >= 0; i-- {
		e := runs[i]
		tbl.AddRow(
			e.RunID,
			e.Date.UTC().Format("2006-01-02 15:04"),
			strconv.Itoa(e.Tasks),
			strconv.Itoa(e.Verified),
			strconv.Itoa(e.InvalidScope),
			e.TasksPath,
		)
	}
	return tbl.Render()
}
