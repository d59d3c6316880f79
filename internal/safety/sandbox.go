package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"unicode"
)

// Kind names the rule a path violated.
type Kind string

const (
	KindOK               Kind = "ok"
	KindInvalidScope     Kind = "invalid_scope"
	KindAbsolutePath     Kind = "absolute_path"
	KindTraversal        Kind = "traversal"
	KindGlob             Kind = "glob"
	KindLooksLikeCommand Kind = "looks_like_command"
	KindSymlinkRefused   Kind = "symlink_refused"
)

// ScopeError reports a path rejected by the sandbox.
type ScopeError struct {
	Kind   Kind
	Path   string
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.Kind, e.Reason, e.Path)
}

// KindOf returns the Kind carried by err, KindOK for nil, and
// KindInvalidScope for any other error.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var se *ScopeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInvalidScope
}

// CommandPrefixes are first path segments that signal a command was written
// where a path belongs.
var CommandPrefixes = map[string]bool{
	"npm": true, "pnpm": true, "yarn": true, "npx": true, "bun": true, "node": true,
	"python": true, "python3": true, "pip": true, "pip3": true, "pytest": true,
	"make": true, "docker": true, "docker-compose": true, "compose": true,
	"go": true, "cargo": true, "mvn": true, "gradle": true, "java": true,
	"dotnet": true, "swagger-cli": true, "prisma": true, "tsc": true, "jest": true,
}

var driveLetterRe = regexp.MustCompile(`^[A-Za-z]:`)

// Normalize converts separators to "/", strips leading "./", collapses
// duplicate slashes and drops "." segments. dirHint reports whether the input
// ended with a slash.
func Normalize(p string) (clean string, dirHint bool) {
	p = strings.ReplaceAll(p, `\`, "/")
	dirHint = strings.HasSuffix(p, "/") && len(strings.Trim(p, "/")) > 0
	leading := strings.HasPrefix(p, "/")

	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segs = append(segs, seg)
	}
	clean = strings.Join(segs, "/")
	if leading {
		clean = "/" + clean
	}
	return clean, dirHint
}

// Validate normalizes p and applies every string-level rule. It returns the
// normalized repo-relative path or a *ScopeError.
func Validate(p string, cfg Config) (string, error) {
	raw := p
	p = strings.TrimSpace(p)
	if p == "" {
		return "", &ScopeError{Kind: KindInvalidScope, Path: raw, Reason: "empty path"}
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.HasPrefix(p, "~") || driveLetterRe.MatchString(p) {
		return "", &ScopeError{Kind: KindAbsolutePath, Path: raw, Reason: "absolute path is not allowed"}
	}

	clean, _ := Normalize(p)
	if clean == "" {
		return "", &ScopeError{Kind: KindInvalidScope, Path: raw, Reason: "path names the project root"}
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return "", &ScopeError{Kind: KindTraversal, Path: raw, Reason: "path traversal (..) is not allowed"}
		}
	}
	if strings.IndexFunc(p, unicode.IsSpace) >= 0 {
		return "", &ScopeError{Kind: KindLooksLikeCommand, Path: raw, Reason: "whitespace in path; put commands in command= and keep path= as an anchor file"}
	}
	if strings.ContainsAny(clean, "*?[]") {
		return "", &ScopeError{Kind: KindGlob, Path: raw, Reason: "glob patterns are not allowed in path="}
	}
	first := strings.ToLower(strings.SplitN(clean, "/", 2)[0])
	if CommandPrefixes[first] {
		return "", &ScopeError{Kind: KindLooksLikeCommand, Path: raw, Reason: "path starts with a tool name (" + first + "); use command= and keep path= as an anchor file"}
	}
	if len(cfg.ReadAllow) > 0 && !underAny(clean, cfg.ReadAllow) {
		return "", &ScopeError{Kind: KindInvalidScope, Path: raw, Reason: "path is outside the read-allow roots"}
	}
	return clean, nil
}

// underAny reports whether the repo-relative path rel lies under one of roots.
func underAny(rel string, roots []string) bool {
	for _, root := range roots {
		r, _ := Normalize(strings.TrimSpace(root))
		if r == "" {
			return true
		}
		if rel == r || strings.HasPrefix(rel, r+"/") {
			return true
		}
	}
	return false
}

// Resolved is a path that passed every sandbox rule.
type Resolved struct {
	// Rel is the normalized repo-relative path using "/" separators.
	Rel string
	// Abs is the absolute filesystem path.
	Abs string
	// DirHint is set when the hook spelled the path with a trailing slash.
	DirHint bool
}

// Sandbox binds validation to a project root on disk.
type Sandbox struct {
	root string
	cfg  Config
}

// New locks the sandbox to root, which is resolved to an absolute,
// symlink-free directory.
func New(root string, cfg Config) (*Sandbox, error) {
	if root == "" {
		return nil, errors.New("safety: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safety: root is not a directory: %s", abs)
	}
	return &Sandbox{root: abs, cfg: cfg}, nil
}

// Root returns the absolute project root.
func (s *Sandbox) Root() string { return s.root }

// Config returns the configuration the sandbox enforces.
func (s *Sandbox) Config() Config { return s.cfg }

// Resolve validates p and maps it onto the project root.
func (s *Sandbox) Resolve(p string) (Resolved, error) {
	rel, err := Validate(p, s.cfg)
	if err != nil {
		return Resolved{}, err
	}
	_, dirHint := Normalize(strings.TrimSpace(p))

	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if !isStrictDescendant(abs, s.root) {
		return Resolved{}, &ScopeError{Kind: KindInvalidScope, Path: p, Reason: "path resolves outside the project root"}
	}

	if s.cfg.AllowSymlinks {
		if real, err := filepath.EvalSymlinks(abs); err == nil && !isStrictDescendant(real, s.root) {
			return Resolved{}, &ScopeError{Kind: KindInvalidScope, Path: p, Reason: "symlink target is outside the project root"}
		}
	} else if err := s.refuseSymlinks(rel, p); err != nil {
		return Resolved{}, err
	}

	return Resolved{Rel: rel, Abs: abs, DirHint: dirHint}, nil
}

// refuseSymlinks walks every existing component of rel below the root.
func (s *Sandbox) refuseSymlinks(rel, original string) error {
	cur := s.root
	for _, seg := range strings.Split(rel, "/") {
		cur = filepath.Join(cur, seg)
		info, err := os.Lstat(cur)
		if err != nil {
			// Missing components are reported by the matcher as "not found".
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return &ScopeError{Kind: KindSymlinkRefused, Path: original, Reason: "symbolic link in path is refused"}
		}
	}
	return nil
}

// IsSymlink reports whether the entry at abs is a symbolic link. Directory
// walks use it to skip links when symlinks are disallowed.
func (s *Sandbox) IsSymlink(abs string) bool {
	info, err := os.Lstat(abs)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// WriteAllowed checks that target may be replaced by the migrator. target may
// be absolute or relative to the working directory.
func (s *Sandbox) WriteAllowed(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	if !isStrictDescendant(abs, s.root) {
		return &ScopeError{Kind: KindInvalidScope, Path: target, Reason: "write target is outside the project root"}
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return &ScopeError{Kind: KindSymlinkRefused, Path: target, Reason: "write target is a symbolic link"}
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return fmt.Errorf("relativize target: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if len(s.cfg.WriteDeny) > 0 && underAny(rel, s.cfg.WriteDeny) {
		return &ScopeError{Kind: KindInvalidScope, Path: target, Reason: "write target is under a write-deny root"}
	}
	if len(s.cfg.WriteAllow) > 0 && !underAny(rel, s.cfg.WriteAllow) {
		return &ScopeError{Kind: KindInvalidScope, Path: target, Reason: "write target is outside the write-allow roots"}
	}
	return nil
}

// isStrictDescendant reports whether path lies below root (and is not root).
func isStrictDescendant(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return false
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
