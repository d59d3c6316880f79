// Package safety confines evidence paths to the project being verified.
//
// Evidence hooks are written by people and by agents, and a hook is only as
// trustworthy as the path it names. Every path that reaches the filesystem
// passes through this package first.
//
// # Threat Model
//
// T1 - Path Traversal: a hook such as `code path=../../etc/passwd` could read
// outside the repository. Any ".." segment is rejected before the path is
// joined to the root, and the joined result must still be a strict descendant
// of the symlink-resolved project root.
//
// T2 - Absolute Paths: leading slashes, drive letters (C:) and home-relative
// (~) paths name files the project does not own. They are rejected outright,
// never rewritten into a relative guess.
//
// T3 - Symlink Escape: a symlink inside the repository can point anywhere.
// Unless symlinks are explicitly allowed, each existing component of the path
// is inspected with Lstat and the path is refused if any of them is a link.
//
// T4 - Commands in Path Position: `path=npm run build` is the dominant cause of
// evidence false negatives. Whitespace in a path and a first segment that is
// an interpreter or build tool name are reported as looks_like_command so the
// author moves the command into command= and keeps path= as an anchor file.
//
// T5 - Globs: `*`, `?`, `[` and `]` are refused; a hook names one artifact.
//
// T6 - Write Scope: the migrator's apply step may only replace documents under
// the configured write-allow roots and never under write-deny roots.
//
// # Design Principles
//
// Never coerce: a rejected path yields a ScopeError naming the rule, and the
// caller reports it. Validation is pure string work; Resolve adds the
// filesystem checks and is the only function here that touches the disk.
package safety
