package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultBaseDir is the default reports directory.
	DefaultBaseDir = ".hookcheck/reports"

	// IndexFile is the name of the run index inside the base directory.
	IndexFile = "runs.jsonl"

	// ReportFile is the markdown report inside a run directory.
	ReportFile = "report.md"

	// SummaryFile is the JSON summary inside a run directory.
	SummaryFile = "summary.json"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage implements Storage using the local filesystem.
type FileStorage struct {
	// BaseDir is the reports directory (e.g., .hookcheck/reports).
	BaseDir string

	mu sync.Mutex
}

// FileStorageOption configures a FileStorage instance.
type FileStorageOption func(*FileStorage)

// WithBaseDir sets the base directory.
func WithBaseDir(dir string) FileStorageOption {
	return func(fs *FileStorage) {
		fs.BaseDir = dir
	}
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(opts ...FileStorageOption) *FileStorage {
	fs := &FileStorage{
		BaseDir: DefaultBaseDir,
	}

	for _, opt := range opts {
		opt(fs)
	}

	return fs
}

// Init creates the required directory structure.
func (fs *FileStorage) Init() error {
	if err := os.MkdirAll(fs.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", fs.BaseDir, err)
	}
	return nil
}

// WriteRun writes every artifact into <base>/<runID>/ and returns that
// directory.
func (fs *FileStorage) WriteRun(runID string, artifacts ...Artifact) (string, error) {
	if runID == "" {
		return "", ErrRunIDRequired
	}
	if err := checkName(runID); err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := fs.RunDir(runID)
	for _, a := range artifacts {
		if err := checkName(a.Name); err != nil {
			return "", err
		}
		if err := AtomicWriteFunc(filepath.Join(dir, a.Name), 0o644, a.Write); err != nil {
			return "", fmt.Errorf("write %s: %w", a.Name, err)
		}
	}

	return dir, nil
}

// WriteIndex appends an entry to the run index.
func (fs *FileStorage) WriteIndex(entry *IndexEntry) error {
	if entry.RunID == "" {
		return ErrRunIDRequired
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	indexPath := fs.IndexPath()

	// Check for duplicate by run ID
	if fs.hasIndexEntry(indexPath, entry.RunID) {
		// Already indexed, skip
		return nil
	}

	return appendJSONL(indexPath, entry)
}

// ListRuns returns all run index entries.
func (fs *FileStorage) ListRuns() (entries []IndexEntry, err error) {
	f, err := os.Open(fs.IndexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry IndexEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	return entries, scanner.Err()
}

// FindRun resolves a full run ID or a unique prefix of one.
func (fs *FileStorage) FindRun(idOrPrefix string) (IndexEntry, error) {
	entries, err := fs.ListRuns()
	if err != nil {
		return IndexEntry{}, err
	}

	var matches []IndexEntry
	for _, e := range entries {
		if e.RunID == idOrPrefix {
			return e, nil
		}
		if idOrPrefix != "" && strings.HasPrefix(e.RunID, idOrPrefix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return IndexEntry{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return IndexEntry{}, fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousRunID, idOrPrefix, len(matches))
	}
}

// ReadArtifact reads one artifact of a run.
func (fs *FileStorage) ReadArtifact(runID, name string) ([]byte, error) {
	if err := checkName(runID); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(fs.RunDir(runID), name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, name)
	}
	return data, err
}

// Close releases any resources.
func (fs *FileStorage) Close() error {
	return nil // No resources to release for file storage
}

// AtomicWrite writes data to a temp file in the target directory, syncs it,
// and renames it over path.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return AtomicWriteFunc(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// AtomicWriteFunc is AtomicWrite with the content produced by writeFunc.
func AtomicWriteFunc(path string, perm os.FileMode, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	// Write content
	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write content: %w", err)
	}

	// Sync to ensure data is on disk
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}

// appendJSONL appends a JSON line to a file.
func appendJSONL(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // sync already called, close best-effort
	}()

	// Write with newline
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	return f.Sync()
}

// hasIndexEntry checks if a run ID already exists in the index.
func (fs *FileStorage) hasIndexEntry(indexPath, runID string) bool {
	f, err := os.Open(indexPath)
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only check, errors non-critical
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry IndexEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.RunID == runID {
			return true
		}
	}

	return false
}

// checkName rejects names that would escape the run directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	}
	return nil
}

// GetBaseDir returns the configured base directory.
func (fs *FileStorage) GetBaseDir() string {
	return fs.BaseDir
}

// RunDir returns the directory of a run.
func (fs *FileStorage) RunDir(runID string) string {
	return filepath.Join(fs.BaseDir, runID)
}

// IndexPath returns the full path to the run index.
func (fs *FileStorage) IndexPath() string {
	return filepath.Join(fs.BaseDir, IndexFile)
}
