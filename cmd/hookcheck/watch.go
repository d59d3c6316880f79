package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/watch"
)

var (
	watchDebounce time.Duration
	watchNoWrite  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <tasks.md>",
	Short: "Re-verify a task document whenever it changes",
	Long: `Verify a task document, then verify it again after every saved change
until interrupted. Each run is independent and is persisted like verify
unless --no-write is set.

Examples:
  hookcheck watch specs/auth/tasks.md
  hookcheck watch specs/auth/tasks.md --debounce 1s --no-write`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period after a change before re-verifying")
	watchCmd.Flags().BoolVar(&watchNoWrite, "no-write", false, "Do not persist runs")
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0], nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New([]string{s.DocPath}, watch.Options{Debounce: watchDebounce, Logger: logger}, func(ctx context.Context, reason string) error {
		return s.watchRun(ctx, cmd, reason)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", s.DocRel)
	return w.Run(ctx)
}

// watchRun performs one verification for the watch loop.
func (s *session) watchRun(ctx context.Context, cmd *cobra.Command, reason string) error {
	rep, err := s.verify(ctx)
	if err != nil {
		return err
	}
	logger.Debug("watch run", zap.String("reason", reason), zap.String("run_id", rep.RunID))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n[%s] %s\n", time.Now().Format("15:04:05"), reason)
	if !watchNoWrite {
		runDir, err := s.persist(rep, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", runDir)
	}
	return writeReport(out, s.Config.Output, rep)
}
