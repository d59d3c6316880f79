// Package storage persists verification runs: one directory per run holding
// its rendered artifacts, plus an append-only JSONL index of runs.
package storage

import (
	"io"
	"time"
)

// IndexEntry is one line of the run index.
type IndexEntry struct {
	// RunID links to the run directory.
	RunID string `json:"run_id"`

	// Date is when the run started.
	Date time.Time `json:"date"`

	// TasksPath is the verified document.
	TasksPath string `json:"tasks_path"`

	// SpecID is the document's spec_id metadata.
	SpecID string `json:"spec_id,omitempty"`

	// RunDir is the directory holding the run's artifacts.
	RunDir string `json:"run_dir"`

	// Counts by verdict status.
	Tasks        int `json:"tasks"`
	Verified     int `json:"verified"`
	NotVerified  int `json:"not_verified"`
	NeedsManual  int `json:"needs_manual"`
	MissingHooks int `json:"missing_hooks"`
	InvalidScope int `json:"invalid_scope"`

	// BudgetExhausted is set when the run ran out of scan budget.
	BudgetExhausted bool `json:"budget_exhausted,omitempty"`
}

// Artifact is one file written into a run directory.
type Artifact struct {
	// Name is the file name inside the run directory.
	Name string

	// Write renders the artifact.
	Write func(w io.Writer) error
}

// Storage is the interface for persisting runs.
type Storage interface {
	// WriteRun writes the artifacts of one run and returns its directory.
	WriteRun(runID string, artifacts ...Artifact) (string, error)

	// WriteIndex appends an entry to the run index.
	WriteIndex(entry *IndexEntry) error

	// ListRuns returns all index entries in write order.
	ListRuns() ([]IndexEntry, error)

	// FindRun resolves a run ID or unique ID prefix.
	FindRun(idOrPrefix string) (IndexEntry, error)

	// ReadArtifact returns one artifact of a run.
	ReadArtifact(runID, name string) ([]byte, error)

	// Init creates the required directory structure.
	Init() error

	// Close releases any resources.
	Close() error
}
