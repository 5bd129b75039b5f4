package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Sandbox confines filesystem tools to a root directory, the working
// directory fixed at session start. Relative paths resolve against the
// root; absolute paths are accepted only when they resolve inside it.
// Traversal outside the root is blocked outright, symlinks included.
type Sandbox struct {
	// Root is the absolute path of the sandbox root.
	Root string
}

// NewSandbox creates a sandbox rooted at the given directory.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: invalid root %q: %w", root, err)
	}
	// Resolve the root itself so the containment check compares resolved
	// paths on both sides (macOS /tmp is a symlink).
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Sandbox{Root: abs}, nil
}

// ValidatePath checks that a path stays within the sandbox root. Returns
// the cleaned absolute path or an error if the path escapes.
func (s *Sandbox) ValidatePath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.Root, abs)
	}
	abs = filepath.Clean(abs)

	if !s.contains(s.resolve(abs)) {
		return "", fmt.Errorf("path %q resolves outside the working directory %q", path, s.Root)
	}
	return abs, nil
}

// resolve follows symlinks so a link cannot smuggle a path out of the
// root. A target that does not exist yet (write_file creating it) is
// resolved through its parent directory instead.
func (s *Sandbox) resolve(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if parent, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(parent, filepath.Base(abs))
	}
	return abs
}

func (s *Sandbox) contains(p string) bool {
	return p == s.Root || strings.HasPrefix(p, s.Root+string(filepath.Separator))
}
