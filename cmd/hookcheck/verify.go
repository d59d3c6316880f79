package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/config"
	"github.com/boshu2/hookcheck/internal/formatter"
	"github.com/boshu2/hookcheck/internal/matcher"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/verify"
)

var (
	verifyOut     string
	verifyNoWrite bool
	verifyStrict  bool
	verifyMedium  []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <tasks.md>",
	Short: "Verify tasks against their evidence hooks",
	Long: `Verify every task in a task document against its evidence hooks.

Each hook is resolved inside the project root under the configured scan
limits. A task is verified only by a high-confidence match, or by a matched
medium result of a type listed in --medium-verified.

The run is persisted as <reports_dir>/<run_id>/report.md and summary.json,
and indexed in <reports_dir>/runs.jsonl, unless --no-write is set.

Exit status is 1 when any task has evidence outside the workspace, or when
--strict is set and the document has structural errors.

Examples:
  hookcheck verify specs/auth/tasks.md
  hookcheck verify specs/auth/tasks.md -o json --no-write
  hookcheck verify tasks.md --medium-verified code,test --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyOut, "out", "", "Reports directory (default: reports_dir from config)")
	verifyCmd.Flags().BoolVar(&verifyNoWrite, "no-write", false, "Do not persist the run")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "Fail on structural errors in the document")
	verifyCmd.Flags().StringSliceVar(&verifyMedium, "medium-verified", nil, "Hook types whose matched medium results count as verified")
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0], func(c *config.Config) {
		c.Policy.MediumAsVerified = verifyMedium
	})
	if err != nil {
		return err
	}

	rep, err := s.verify(commandContext(cmd))
	if err != nil {
		return err
	}
	if !verifyNoWrite {
		runDir, err := s.persist(rep, verifyOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", runDir)
	}

	if err := writeReport(cmd.OutOrStdout(), s.Config.Output, rep); err != nil {
		return err
	}
	return verifyExit(rep, verifyStrict)
}

// verify parses the session document and evaluates it.
func (s *session) verify(ctx context.Context) (*verify.Report, error) {
	v, err := verify.New(s.Sandbox, verify.Options{
		Policy: verify.Policy{MediumAsVerified: s.Config.MediumTypes()},
		Matcher: matcher.Options{
			UIRoots:  s.Config.Matcher.UIRoots,
			SkipDirs: s.Config.Matcher.SkipDirs,
		},
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		return nil, err
	}
	doc, err := parser.NewParser().ParseFile(s.DocPath)
	if err != nil {
		return nil, err
	}
	doc.Path = s.DocRel
	return v.Verify(ctx, doc), nil
}

// persist writes the run artifacts and appends the index line.
func (s *session) persist(rep *verify.Report, dir string) (string, error) {
	store := s.store(dir)
	if err := store.Init(); err != nil {
		return "", err
	}
	defer store.Close()

	runDir, err := store.WriteRun(rep.RunID, formatter.Artifacts(rep)...)
	if err != nil {
		return "", err
	}
	if err := store.WriteIndex(formatter.IndexEntry(rep, runDir)); err != nil {
		return "", err
	}
	logger.Debug("run persisted", zap.String("run_id", rep.RunID), zap.String("dir", runDir))
	return runDir, nil
}

func writeReport(w io.Writer, out string, rep *verify.Report) error {
	f, err := formatter.ForOutput(out)
	if err != nil {
		return err
	}
	return f.Format(w, rep)
}

// verifyExit turns a failing report into an exit error naming the reason.
func verifyExit(rep *verify.Report, strict bool) error {
	if !rep.Failed(strict) {
		return nil
	}
	var reasons []string
	if n := rep.Totals.InvalidScope; n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d task(s) have evidence outside the workspace", n))
	}
	if n := len(rep.StructuralErrors); strict && n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d structural error(s)", n))
	}
	return &exitError{code: 1, reason: "verification failed: " + strings.Join(reasons, "; ")}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
