package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boshu2/hookcheck/internal/config"
	"github.com/boshu2/hookcheck/internal/logging"
	"github.com/boshu2/hookcheck/internal/resolver"
	"github.com/boshu2/hookcheck/internal/safety"
	"github.com/boshu2/hookcheck/internal/storage"
)

// session is the resolved environment for one command: project root,
// configuration, and the sandbox bound to that root.
type session struct {
	Root    string
	Config  *config.Config
	Sandbox *safety.Sandbox

	// DocPath is the task document on disk; DocRel is the name used in
	// reports (relative to Root when possible).
	DocPath string
	DocRel  string
}

// openSession resolves the project root for docPath (the working directory
// when empty) and loads configuration from it. overrides may add
// command-specific flag values on top of the global flags.
func openSession(docPath string, overrides func(*config.Config)) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	start := docPath
	if start == "" {
		start = cwd
	} else if _, err := os.Stat(docPath); err != nil {
		return nil, fmt.Errorf("tasks file: %w", err)
	}

	root, err := resolver.ProjectRoot(resolver.NewFileResolver(), projectRoot, start, cwd)
	if err != nil {
		return nil, err
	}

	flags := flagOverrides()
	if overrides != nil {
		overrides(flags)
	}
	cfg, err := config.LoadDir(root, flags)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose && !GetVerbose() {
		if l, err := logging.New(true); err == nil {
			logger = l
		}
	}

	sb, err := safety.New(root, cfg.Safety)
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	s := &session{Root: root, Config: cfg, Sandbox: sb}
	if docPath != "" {
		s.DocPath = docPath
		s.DocRel = resolver.Relative(root, docPath)
	}
	return s, nil
}

// reportsDir returns the configured reports directory, anchored at Root when
// relative. dir overrides the configured value when set.
func (s *session) reportsDir(dir string) string {
	if dir == "" {
		dir = s.Config.ReportsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.Root, dir)
}

// store opens the run storage under reportsDir(dir).
func (s *session) store(dir string) *storage.FileStorage {
	return storage.NewFileStorage(storage.WithBaseDir(s.reportsDir(dir)))
}
