package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/formatter"
	"github.com/boshu2/hookcheck/internal/migrate"
	"github.com/boshu2/hookcheck/internal/parser"
)

var (
	migrateApply     bool
	migrateNormalize bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <tasks.md>",
	Short: "Rewrite legacy evidence hooks into the canonical grammar",
	Long: `Stage a rewrite of every legacy or malformed evidence hook in a task
document and show it as a unified diff.

Nothing is written unless --apply is given. Applying first writes a backup
(<file>.bak-<timestamp>) and then atomically replaces the document; on a
failed replace the document is restored from the backup.

Commands found in legacy hooks are wrapped as test hooks anchored at a real
file (package.json, go.mod, ...) and recorded, never run. Lines that cannot
be repaired are reported and left unchanged.

Examples:
  hookcheck migrate specs/auth/tasks.md
  hookcheck migrate specs/auth/tasks.md --apply
  hookcheck migrate specs/auth/tasks.md --normalize -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateApply, "apply", false, "Write the rewritten document (after a backup)")
	migrateCmd.Flags().BoolVar(&migrateNormalize, "normalize", false, "Also rewrite valid hooks that are not in canonical form")
}

// migrateOutput is the structured result of a migrate run.
type migrateOutput struct {
	Plan    *migrate.Plan        `json:"plan" yaml:"plan"`
	Applied *migrate.ApplyResult `json:"applied,omitempty" yaml:"applied,omitempty"`
}

func runMigrate(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0], nil)
	if err != nil {
		return err
	}
	doc, err := parser.NewParser().ParseFile(s.DocPath)
	if err != nil {
		return err
	}
	doc.Path = s.DocRel

	mig := migrate.New(s.Sandbox, migrate.Options{
		Normalize:    migrateNormalize,
		BackupSuffix: s.Config.Migrate.BackupSuffix,
		Logger:       logger,
	})
	plan, err := mig.Plan(commandContext(cmd), doc, nil)
	if err != nil {
		return err
	}
	// Plan names the document for the diff; Apply needs the path on disk.
	plan.Path = s.DocPath

	result := migrateOutput{Plan: plan}
	if migrateApply {
		applied, err := mig.Apply(plan)
		if err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
		result.Applied = applied
	}

	w := cmd.OutOrStdout()
	handled, err := encodeStructured(w, s.Config.Output, result)
	if err != nil || handled {
		return err
	}
	return writeMigrateText(w, s.DocRel, result)
}

func writeMigrateText(w io.Writer, name string, result migrateOutput) error {
	plan := result.Plan
	if plan.Empty() && len(plan.Rejected) == 0 {
		_, err := fmt.Fprintf(w, "%s: all evidence hooks are canonical\n", name)
		return err
	}

	if len(plan.Changes) > 0 {
		tbl := formatter.NewTable(w, "LINE", "TASK", "STATUS", "REASON", "NEW")
		tbl.SetMaxWidth(3, 40).SetMaxWidth(4, 72)
		for _, c := range plan.Changes {
			line := fmt.Sprintf("%d", c.Line)
			if c.Inserted {
				line += "+"
			}
			tbl.AddRow(line, c.TaskID, string(c.Status), c.Reason, c.New)
		}
		if err := tbl.Render(); err != nil {
			return fmt.Errorf("render plan table: %w", err)
		}
		fmt.Fprintln(w)
	}

	for _, r := range plan.Rejected {
		fmt.Fprintf(w, "rejected line %d: %s (%s)\n", r.Line, r.Payload, r.Reason)
	}
	if plan.Diff != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, colorDiff(plan.Diff))
	}

	fmt.Fprintf(w, "\n%d change(s), %d need review, %d rejected\n", len(plan.Changes), plan.NeedsReview(), len(plan.Rejected))
	switch {
	case result.Applied != nil && result.Applied.Written:
		fmt.Fprintf(w, "Applied to %s (backup: %s)\n", name, result.Applied.Backup)
	case !plan.Empty():
		fmt.Fprintln(w, "Dry run: re-run with --apply to write the changes")
	}
	return nil
}

var (
	diffAdd  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	diffDel  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	diffHunk = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// colorDiff styles unified diff lines. Styles render as plain text when the
// output is not a color terminal.
func colorDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(body)
		case strings.HasPrefix(body, "@@"):
			b.WriteString(diffHunk.Render(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(diffAdd.Render(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(diffDel.Render(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}
