package security

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// Roots is a file-path allow-list for the tool boundary. A path passes only
// when, after absolute resolution and symlink evaluation, it sits under one
// of the configured root directories. No configured roots means no path
// passes: the check fails closed.
type Roots struct {
	roots []string
}

// NewRoots resolves each directory to an absolute, symlink-free form. Every
// root must exist; a missing or unresolvable root is a configuration error.
func NewRoots(dirs ...string) (*Roots, error) {
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, apperrors.InvalidArgument("roots", "cannot resolve "+dir).WithCause(err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, apperrors.InvalidArgument("roots", "root does not exist: "+dir).WithCause(err)
		}
		roots = append(roots, resolved)
	}
	return &Roots{roots: roots}, nil
}

// Validate checks path against the allow-list and returns its resolved
// absolute form for the caller to open. Symlinks are evaluated before the
// containment check, so a link inside a root cannot reach outside it. The
// path itself need not exist yet (output files); its deepest existing
// ancestor is the one resolved.
func (r *Roots) Validate(path string) (string, error) {
	if r == nil || len(r.roots) == 0 {
		return "", apperrors.PathSecurity(path, "no file roots configured")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.PathSecurity(path, "cannot resolve path").WithCause(err)
	}
	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", apperrors.PathSecurity(path, "cannot resolve path").WithCause(err)
	}
	for _, root := range r.roots {
		if contains(root, resolved) {
			return resolved, nil
		}
	}
	return "", apperrors.PathSecurity(path, "outside the configured roots")
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// path and rejoins the remainder, so not-yet-created files still resolve.
func resolveExisting(path string) (string, error) {
	suffix := ""
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}

// contains reports whether path equals root or sits beneath it. Both
// arguments are clean absolute paths.
func contains(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
