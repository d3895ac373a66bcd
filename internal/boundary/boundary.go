// Package boundary enforces the filesystem sandbox tools operate under:
// restricted sessions may only touch paths inside a fixed root,
// unrestricted sessions may touch any path the OS permits.
package boundary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lincona/internal/config"
)

// ErrEscapesRoot is returned (wrapped) when a path resolves outside a
// restricted boundary's root, including via a symlink.
var ErrEscapesRoot = errors.New("path escapes restricted root")

// Boundary enforces spec.md's filesystem-mode invariant for one session.
type Boundary struct {
	mode config.FsMode
	root string // absolute, symlink-resolved; empty when unrestricted
}

// New builds a Boundary for the given mode. root is only consulted in
// FsModeRestricted; if empty, the process working directory is used.
func New(mode config.FsMode, root string) (*Boundary, error) {
	if mode != config.FsModeRestricted {
		return &Boundary{mode: mode}, nil
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	resolved, err := resolveExisting(root)
	if err != nil {
		return nil, fmt.Errorf("resolve restricted root %q: %w", root, err)
	}
	return &Boundary{mode: mode, root: resolved}, nil
}

// Root returns the restricted root, or "" when unrestricted.
func (b *Boundary) Root() string { return b.root }

// Mode reports the boundary's filesystem mode.
func (b *Boundary) Mode() config.FsMode { return b.mode }

// Resolve returns an absolute, symlink-resolved form of rawPath. Relative
// paths are joined against the restricted root (or cwd when unrestricted).
// Restricted boundaries reject any path — direct or via symlink — that
// resolves outside the root.
func (b *Boundary) Resolve(rawPath string) (string, error) {
	path := rawPath
	if !filepath.IsAbs(path) {
		base := b.root
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("resolve working directory: %w", err)
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}

	resolved, err := resolveMaybeMissing(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", rawPath, err)
	}

	if b.root != "" && !isWithinRoot(b.root, resolved) {
		return "", fmt.Errorf("%w: %q (root %q)", ErrEscapesRoot, rawPath, b.root)
	}
	return resolved, nil
}

// WorkDir validates and returns a tool-supplied working directory,
// defaulting to the restricted root (or cwd when unrestricted) when
// rawPath is empty.
func (b *Boundary) WorkDir(rawPath string) (string, error) {
	if rawPath == "" {
		if b.root != "" {
			return b.root, nil
		}
		return os.Getwd()
	}
	return b.Resolve(rawPath)
}

// resolveExisting resolves a path that is expected to exist (used for the
// boundary root itself).
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// resolveMaybeMissing resolves symlinks along the longest existing prefix
// of path, then rejoins any not-yet-created suffix. This tolerates
// tool-supplied paths that name files not yet created, such as an
// apply_patch add target.
func resolveMaybeMissing(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	var suffix []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}

func isWithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
