// Package security validates file names taken from recorded or user-supplied data.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a name would resolve outside its base directory.
var ErrPathTraversal = errors.New("path traversal")

// ValidateRelativePath rejects names that are absolute or that climb out of
// the directory they are joined to. The check is lexical so it applies to
// any fsutil.FileSystem, including in-memory ones.
func ValidateRelativePath(name string) error {
	if name == "" {
		return fmt.Errorf("empty path")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%w: %s is absolute", ErrPathTraversal, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s escapes its directory", ErrPathTraversal, name)
	}
	return nil
}

// JoinWithin joins name onto dir after validating it with ValidateRelativePath.
func JoinWithin(dir, name string) (string, error) {
	if err := ValidateRelativePath(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(name)), nil
}
