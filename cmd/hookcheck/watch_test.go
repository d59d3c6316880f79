package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/hookcheck/internal/storage"
)

func TestWatchRun(t *testing.T) {
	root := authProject(t, tasksDoc)

	s, err := openSession("specs/auth/tasks.md", nil)
	require.NoError(t, err)

	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	watchNoWrite = true
	require.NoError(t, s.watchRun(context.Background(), cmd, "initial"))
	assert.Contains(t, out.String(), "] initial")
	assert.Contains(t, out.String(), "TSK-1")
	assert.NoDirExists(t, filepath.Join(root, storage.DefaultBaseDir))

	watchNoWrite = false
	out.Reset()
	require.NoError(t, s.watchRun(context.Background(), cmd, "tasks.md"))
	assert.Contains(t, out.String(), "] tasks.md")
	assert.Contains(t, errOut.String(), "Report written to")
	assert.FileExists(t, filepath.Join(root, storage.DefaultBaseDir, storage.IndexFile))
}
