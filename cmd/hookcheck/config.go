package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/config"
	"github.com/boshu2/hookcheck/internal/formatter"
	"github.com/boshu2/hookcheck/internal/resolver"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View hookcheck configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (HOOKCHECK_*)
  3. .env in the project root (only variables not already set)
  4. Project config (.hookcheck/config.yaml or .hookcheck/config.toml)
  5. Home config (~/.hookcheck/config.yaml)
  6. Defaults

Environment variables:
  HOOKCHECK_CONFIG             - Explicit project config file path
  HOOKCHECK_OUTPUT             - Default output format (table, json, jsonl, yaml, markdown)
  HOOKCHECK_VERBOSE            - Enable debug logging (true/1)
  HOOKCHECK_REPORTS_DIR        - Reports directory
  HOOKCHECK_MAX_SECONDS        - Scan deadline per run
  HOOKCHECK_MAX_TOTAL_BYTES    - Bytes read per run
  HOOKCHECK_MAX_FILE_BYTES     - Bytes read per file
  HOOKCHECK_ALLOW_SYMLINKS     - Follow symlinks inside the project (true/false)
  HOOKCHECK_MEDIUM_AS_VERIFIED - Hook types whose medium matches verify (code,test)`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with sources",
	Long: `Show every configuration value and the layer it came from.

Examples:
  hookcheck config show
  hookcheck config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	root, err := resolver.ProjectRoot(resolver.NewFileResolver(), projectRoot, cwd, cwd)
	if err != nil {
		return err
	}
	flags := flagOverrides()
	resolved, err := config.Resolve(root, flags)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	out := resolved.Output.Value.(string)
	if handled, err := encodeStructured(w, out, resolved); handled || err != nil {
		return err
	}

	fmt.Fprintln(w, "hookcheck Configuration")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Project root:   %s\n", root)
	if _, err := os.Stat(resolved.ProjectConfig); err == nil {
		fmt.Fprintf(w, "Project config: %s\n", resolved.ProjectConfig)
	} else {
		fmt.Fprintf(w, "Project config: %s (not found)\n", resolved.ProjectConfig)
	}
	fmt.Fprintln(w)

	tbl := formatter.NewTable(w, "KEY", "VALUE", "SOURCE")
	tbl.SetMaxWidth(1, 60)
	for _, row := range resolved.Rows() {
		tbl.AddRow(row[0], row[1], row[2])
	}
	return tbl.Render()
}
