package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/formatter"
	"github.com/boshu2/hookcheck/internal/storage"
)

var (
	reportDir   string
	reportRaw   bool
	reportWidth int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List and show persisted verification runs",
	Long: `Browse the runs written by hookcheck verify.

Runs live under reports_dir (default .hookcheck/reports): one directory per
run with report.md and summary.json, indexed by runs.jsonl.

Examples:
  hookcheck report list
  hookcheck report show 3f2a
  hookcheck report show 3f2a -o json`,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run report (any unique run ID prefix)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportShowCmd)
	reportCmd.PersistentFlags().StringVar(&reportDir, "dir", "", "Reports directory (default: reports_dir from config)")
	reportShowCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print the markdown source instead of rendering it")
	reportShowCmd.Flags().IntVar(&reportWidth, "width", 100, "Word wrap width for rendered output")
}

func openReportStore() (*session, *storage.FileStorage, error) {
	s, err := openSession("", nil)
	if err != nil {
		return nil, nil, err
	}
	return s, s.store(reportDir), nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	s, store, err := openReportStore()
	if err != nil {
		return err
	}
	runs, err := store.ListRuns()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if handled, err := encodeStructured(w, s.Config.Output, runs); handled || err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs in %s\n", store.GetBaseDir())
		return nil
	}
	return formatter.RunsTable(w, runs)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	s, store, err := openReportStore()
	if err != nil {
		return err
	}
	entry, err := store.FindRun(args[0])
	if err != nil {
		return fmt.Errorf("find run %q: %w", args[0], err)
	}

	w := cmd.OutOrStdout()
	switch s.Config.Output {
	case "json", "jsonl", "yaml":
		data, err := store.ReadArtifact(entry.RunID, storage.SummaryFile)
		if err != nil {
			return err
		}
		if s.Config.Output == "json" {
			_, err = w.Write(data)
			return err
		}
		// Re-encode the stored summary in the requested format.
		var summary map[string]interface{}
		if err := json.Unmarshal(data, &summary); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		_, err = encodeStructured(w, s.Config.Output, summary)
		return err
	}

	md, err := store.ReadArtifact(entry.RunID, storage.ReportFile)
	if err != nil {
		return err
	}
	if reportRaw {
		_, err = w.Write(md)
		return err
	}
	return renderMarkdown(w, string(md), reportWidth)
}

// renderMarkdown writes md styled for the terminal.
// Styles follow the terminal background; without a terminal the output is
// plain text.
func renderMarkdown(w io.Writer, md string, width int) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = w.Write([]byte(out))
	return err
}
