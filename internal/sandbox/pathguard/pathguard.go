// Package pathguard decides whether a candidate path may be touched by
// sandboxed code. It is pure logic shared by the workspace and by the audit
// layer; the generated guard module enforces the same rule inside the child.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	appErr "aibugbench/pkg/errors"
)

// Allow reports whether candidate resolves to a location inside root.
// Symlinks along existing portions of candidate are resolved first, so a link
// pointing outside the root is denied even though its own path looks inside.
func Allow(root, candidate string) (bool, error) {
	resolved, err := Resolve(root, candidate)
	if err != nil {
		return false, err
	}
	return resolved != "", nil
}

// Resolve returns the absolute, symlink-resolved form of candidate when it
// lies under root, or "" when it escapes. Non-path errors (unreadable root)
// are returned as errors; an escaping path is not an error, just a denial.
func Resolve(root, candidate string) (string, error) {
	if root == "" {
		return "", appErr.ValidationError("root", "required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceRootInvalid, "resolve sandbox root: %v", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceRootInvalid, "resolve sandbox root: %v", err)
	}

	abs := candidate
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(absRoot, candidate)
	}
	abs = filepath.Clean(abs)

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", err
	}

	if !within(realRoot, resolved) {
		return "", nil
	}
	return resolved, nil
}

// resolveExisting resolves symlinks on the deepest existing ancestor of path
// and re-joins the not-yet-existing remainder. A target that does not exist
// yet (a pending write) is still judged by where it would land.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if remainder == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", appErr.Wrapf(err, appErr.ExecSystemError, "resolve path %q: %v", path, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Ran out of ancestors; treat the cleaned path as final.
			return path, nil
		}
		if remainder == "" {
			remainder = filepath.Base(current)
		} else {
			remainder = filepath.Join(filepath.Base(current), remainder)
		}
		current = parent
	}
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}
