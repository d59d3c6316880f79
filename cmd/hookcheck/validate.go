package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/parser"
	"github.com/boshu2/hookcheck/internal/verify"
)

// maxWarningsShown bounds the warnings section of the text report.
const maxWarningsShown = 80

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate <tasks.md>",
	Short: "Lint the evidence hooks of a task document",
	Long: `Check every evidence hook in a task document against the grammar and the
path rules, without reading the files the hooks point to.

Invalid hooks are errors and make the command exit 1. Warnings (no matcher
key, unquoted command words, evidence outside any task) never fail.

Examples:
  hookcheck validate specs/auth/tasks.md
  hookcheck validate specs/auth/tasks.md -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Fail on structural errors in the document")
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0], nil)
	if err != nil {
		return err
	}
	doc, err := parser.NewParser().ParseFile(s.DocPath)
	if err != nil {
		return err
	}
	doc.Path = s.DocRel

	rep := verify.Lint(doc, s.Config.Safety)
	w := cmd.OutOrStdout()
	handled, err := encodeStructured(w, s.Config.Output, rep)
	if err != nil {
		return err
	}
	if !handled {
		writeLintText(w, rep)
	}

	if rep.Failed(validateStrict) {
		return &exitError{code: 1, reason: fmt.Sprintf("%d invalid evidence hook(s), %d structural error(s)", rep.Invalid, len(rep.StructuralErrors))}
	}
	return nil
}

func writeLintText(w io.Writer, rep *verify.LintReport) {
	rule := strings.Repeat("=", 60)
	validity := 0.0
	if rep.Total > 0 {
		validity = float64(rep.Valid) / float64(rep.Total) * 100
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "EVIDENCE HOOK VALIDATION REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "File: %s\n\n", rep.TasksPath)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Total evidence hooks: %d\n", rep.Total)
	fmt.Fprintf(w, "  Valid hooks: %d\n", rep.Valid)
	fmt.Fprintf(w, "  Invalid hooks: %d\n", rep.Invalid)
	fmt.Fprintf(w, "  Validity: %.1f%%\n", validity)
	fmt.Fprintf(w, "  Hooks with warnings: %d\n", rep.Warned)
	if len(rep.Legacy) > 0 {
		fmt.Fprintf(w, "  Legacy markers: %d\n", len(rep.Legacy))
	}

	if len(rep.StructuralErrors) > 0 {
		fmt.Fprintf(w, "\n%s\nSTRUCTURAL ERRORS (%d):\n%s\n", rule, len(rep.StructuralErrors), rule)
		for _, se := range rep.StructuralErrors {
			fmt.Fprintf(w, "  - %s\n", se.Error())
		}
	}

	if invalid := rep.InvalidEntries(); len(invalid) > 0 {
		fmt.Fprintf(w, "\n%s\nINVALID EVIDENCE HOOKS (%d):\n%s\n", rule, len(invalid), rule)
		for _, e := range invalid {
			fmt.Fprintf(w, "\nLine %d:\n  Content: %s\n  Issues:\n", e.Line, e.Raw)
			for _, issue := range e.Issues {
				fmt.Fprintf(w, "    - %s\n", issue)
			}
		}
		writeGrammar(w)
	}

	if rep.Warned > 0 {
		fmt.Fprintf(w, "\n%s\nWARNINGS (%d hooks):\n%s\n", rule, rep.Warned, rule)
		shown := 0
		for _, e := range rep.Hooks {
			if len(e.Warnings) == 0 {
				continue
			}
			if shown >= maxWarningsShown {
				fmt.Fprintf(w, "... truncated (%d more)\n", rep.Warned-shown)
				break
			}
			fmt.Fprintf(w, "\nLine %d:\n  Content: %s\n", e.Line, e.Raw)
			for _, warn := range e.Warnings {
				fmt.Fprintf(w, "    - %s\n", warn)
			}
			shown++
		}
	}

	if len(rep.Legacy) > 0 {
		fmt.Fprintf(w, "\n%s\nLEGACY MARKERS (%d):\n%s\n", rule, len(rep.Legacy), rule)
		for _, m := range rep.Legacy {
			fmt.Fprintf(w, "  line %d: %s (%s)\n", m.Line, m.Text, m.Kind)
		}
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	if rep.Invalid == 0 {
		fmt.Fprintln(w, "All evidence hooks are valid (warnings may remain).")
	}
}

// writeGrammar lists the keys each evidence type accepts.
func writeGrammar(w io.Writer) {
	fmt.Fprintln(w, "\nEvidence grammar:")
	for _, t := range hook.Types {
		req := hook.RequiredKey(t)
		keys := []string{req + " (required)"}
		for _, k := range hook.AllowedKeys(t) {
			if k != req {
				keys = append(keys, k)
			}
		}
		fmt.Fprintf(w, "  %-5s %s\n", t, strings.Join(keys, ", "))
	}
}
