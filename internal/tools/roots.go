package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoots is returned when a tool path resolves outside every root.
var ErrOutsideRoots = errors.New("path outside allowed roots")

// skipDirs are directories skipped during traversal.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".hg":          true,
}

// Roots jails file tools to a set of directories. Relative paths resolve
// against the first root.
type Roots []string

// NewRoots cleans paths and resolves symlinks. With no paths the working
// directory is the only root.
func NewRoots(paths []string) Roots {
	if len(paths) == 0 {
		if wd, err := os.Getwd(); err == nil {
			paths = []string{wd}
		}
	}
	out := make(Roots, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// Resolve returns the absolute form of path after checking it lies under a root.
func (r Roots) Resolve(path string) (string, error) {
	if len(r) == 0 {
		return "", fmt.Errorf("%w: no roots configured", ErrOutsideRoots)
	}
	if path == "" {
		path = "."
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(r[0], resolved)
	}
	resolved = filepath.Clean(resolved)
	if real, err := evalSymlinksExisting(resolved); err == nil {
		resolved = real
	}
	for _, root := range r {
		if isUnder(resolved, root) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoots, path)
}

// evalSymlinksExisting resolves symlinks on the longest existing prefix of path.
func evalSymlinksExisting(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	realParent, err := evalSymlinksExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(path)), nil
}

func isUnder(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
