// Package resolver locates the project root a tasks document belongs to.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRootNotFound is returned when no marker is found above the document.
var ErrRootNotFound = errors.New("project root not found")

// RootResolver resolves a document path to its project root.
type RootResolver interface {
	Resolve(docPath string) (root string, err error)
}

// FileResolver finds the root by walking up parent directories until one
// contains a marker entry.
type FileResolver struct {
	// Markers are probed in order in each directory.
	Markers []string
}

// DefaultMarkers identify a project root.
var DefaultMarkers = []string{".hookcheck", ".git"}

// NewFileResolver creates a FileResolver with the default markers.
func NewFileResolver() *FileResolver {
	return &FileResolver{Markers: DefaultMarkers}
}

// Resolve walks up from the directory containing docPath and returns the
// first directory holding one of the markers.
func (r *FileResolver) Resolve(docPath string) (string, error) {
	abs, err := filepath.Abs(docPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", docPath, err)
	}
	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if probeMarkers(dir, r.Markers) != "" {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w above %s", ErrRootNotFound, docPath)
}

// probeMarkers returns the first marker present in dir.
func probeMarkers(dir string, markers []string) string {
	for _, m := range markers {
		if _, err := os.Lstat(filepath.Join(dir, m)); err == nil {
			return m
		}
	}
	return ""
}

// ProjectRoot picks the root for docPath: the explicit override when set,
// else the resolved root, else fallback. The returned path is absolute and
// must be a directory.
func ProjectRoot(r RootResolver, override, docPath, fallback string) (string, error) {
	root := override
	if root == "" {
		found, err := r.Resolve(docPath)
		switch {
		case err == nil:
			root = found
		case errors.Is(err, ErrRootNotFound):
			root = fallback
		default:
			return "", err
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// Relative returns docPath relative to root using forward slashes, or the
// cleaned docPath when it lies outside root.
func Relative(root, docPath string) string {
	abs, err := filepath.Abs(docPath)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(docPath))
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(docPath))
	}
	return filepath.ToSlash(rel)
}
