// Package security confines tool-supplied paths to the configured base
// directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves paths against a base directory and rejects any
// that escape it, following symlinks on both sides.
type PathValidator struct {
	base string
}

// NewPathValidator creates a validator for the given base directory
func NewPathValidator(base string) (*PathValidator, error) {
	if base == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &PathValidator{base: filepath.Clean(abs)}, nil
}

// Base returns the absolute base directory.
func (v *PathValidator) Base() string {
	return v.base
}

// Resolve returns the absolute form of path. Relative paths are taken from
// the base directory. Null bytes are stripped.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.base, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)
	if !v.Within(abs) {
		return "", fmt.Errorf("path is outside base directory: %s", path)
	}
	return abs, nil
}

// Within reports whether an absolute path lies inside the base directory.
func (v *PathValidator) Within(abs string) bool {
	realBase := v.base
	if resolved, err := filepath.EvalSymlinks(v.base); err == nil {
		realBase = resolved
	}
	realPath := abs
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		realPath = resolved
	} else if _, statErr := os.Lstat(abs); statErr == nil {
		// broken link
		return false
	}
	return under(abs, v.base, realBase) && under(realPath, v.base, realBase)
}

func under(path string, dirs ...string) bool {
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
