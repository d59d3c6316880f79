package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/config"
	"github.com/boshu2/hookcheck/internal/logging"
)

var (
	// Global flags
	verbose     bool
	output      string
	cfgFile     string
	projectRoot string

	// logger is built by the root pre-run and synced after every command.
	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hookcheck",
	Short: "Verify task completion against evidence hooks",
	Long: `hookcheck checks whether the tasks in a markdown task document are backed
by artifacts in the repository.

Tasks declare proof with evidence hooks:

  - [x] TSK-AUTH-001 Validate tokens
    - evidence: code path=src/auth.ts symbol=validateToken
    - evidence: test path=tests/auth.test.ts contains="rejects expired"

Core Commands:
  verify        Verify every task and write a report
  validate      Lint evidence hooks without reading the repository
  migrate       Rewrite legacy hooks into the canonical grammar
  canonicalize  Canonicalize a single hook payload
  report        List and show past verification runs
  watch         Re-verify whenever the task document changes
  config        Show resolved configuration

Commands referenced by hooks are recorded, never executed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		syncConfigFlagToEnv()
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// exitError carries a non-zero exit status with the reason already printed
// or to be printed.
type exitError struct {
	code   int
	reason string
}

func (e *exitError) Error() string { return e.reason }

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, jsonl, yaml, markdown)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .hookcheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", "", "Project root (default: nearest directory with .hookcheck or .git)")
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool {
	return verbose
}

// GetOutput returns the output flag; empty means "use configuration".
func GetOutput() string {
	return output
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv(config.EnvConfig, path)
}

// flagOverrides converts global flags into the highest-priority config layer.
func flagOverrides() *config.Config {
	return &config.Config{
		Output:  strings.ToLower(strings.TrimSpace(GetOutput())),
		Verbose: GetVerbose(),
	}
}
