package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/boshu2/hookcheck/internal/config"
)

const tasksDoc = `# Auth Tasks

spec_id: auth-core

## Tasks

- [x] TSK-1 Validate tokens
  - evidence: code path=src/auth.ts symbol=validateToken
- [ ] TSK-2 Document the flow
`

// setupProject creates a project with a .git marker and the given files,
// chdirs into it, and isolates configuration from the host.
func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files[".git/HEAD"] = "ref: refs/heads/main\n"
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		config.EnvConfig, config.EnvOutput, config.EnvVerbose, config.EnvReportsDir,
		config.EnvMaxSeconds, config.EnvMaxTotalBytes, config.EnvMaxFileBytes,
		config.EnvAllowSymlinks, config.EnvMediumAsVerified,
	} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatal(err)
		}
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	resetFlags(t)
	return root
}

// resetFlags restores every package-level flag after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	oldOutput, oldVerbose, oldCfg, oldRoot := output, verbose, cfgFile, projectRoot
	oldVerify := []interface{}{verifyOut, verifyNoWrite, verifyStrict, verifyMedium}
	oldMigrate := []bool{migrateApply, migrateNormalize, canonicalizeNormalize, validateStrict, watchNoWrite}
	oldReport := []interface{}{reportDir, reportRaw, reportWidth}
	t.Cleanup(func() {
		output, verbose, cfgFile, projectRoot = oldOutput, oldVerbose, oldCfg, oldRoot
		verifyOut = oldVerify[0].(string)
		verifyNoWrite = oldVerify[1].(bool)
		verifyStrict = oldVerify[2].(bool)
		verifyMedium = oldVerify[3].([]string)
		migrateApply, migrateNormalize, canonicalizeNormalize, validateStrict, watchNoWrite =
			oldMigrate[0], oldMigrate[1], oldMigrate[2], oldMigrate[3], oldMigrate[4]
		reportDir = oldReport[0].(string)
		reportRaw = oldReport[1].(bool)
		reportWidth = oldReport[2].(int)
	})
}

// runCommand calls a RunE function with captured stdout and stderr.
func runCommand(t *testing.T, run func(*cobra.Command, []string) error, args ...string) (string, string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := run(cmd, args)
	return out.String(), errOut.String(), err
}
