package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/migrate"
)

var canonicalizeNormalize bool

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize <payload...>",
	Short: "Canonicalize one evidence hook payload",
	Long: `Turn one payload (a legacy hook, a malformed hook, a bare command, or a
description) into a canonical evidence hook, using the same rules as migrate.

The payload words are joined with single spaces. When a project root is
known, anchor files must exist in it.

Examples:
  hookcheck canonicalize 'evidence: file_exists path=src/auth.ts'
  hookcheck canonicalize npm run build
  hookcheck canonicalize -o json 'code path=src/a.ts symbol=Foo'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCanonicalize,
}

func init() {
	rootCmd.AddCommand(canonicalizeCmd)
	canonicalizeCmd.Flags().BoolVar(&canonicalizeNormalize, "normalize", false, "Rewrite valid hooks into canonical form")
}

func runCanonicalize(cmd *cobra.Command, args []string) error {
	s, err := openSession("", nil)
	if err != nil {
		return err
	}
	mig := migrate.New(s.Sandbox, migrate.Options{
		Normalize: canonicalizeNormalize,
		Logger:    logger,
	})
	c := mig.Canonicalize(strings.Join(args, " "))

	w := cmd.OutOrStdout()
	handled, err := encodeStructured(w, s.Config.Output, c)
	if err != nil {
		return err
	}
	if !handled {
		fmt.Fprintln(w, c.Text)
		if c.Reason != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", c.Status, c.Reason)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), c.Status)
		}
	}

	if c.Status == migrate.StatusRejected {
		return &exitError{code: 1, reason: "payload rejected: " + c.Reason}
	}
	return nil
}
