package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Filename rejects names that could escape the directory they are joined to:
// empty names, path separators, "..", and NUL bytes.
func Filename(filename string) error {
	if filename == "" {
		return &Error{Field: "filename", Message: "is required"}
	}
	if strings.ContainsRune(filename, 0) {
		return &Error{Field: "filename", Message: "contains a null byte"}
	}
	if strings.ContainsRune(filename, '/') || strings.ContainsRune(filename, '\\') {
		return &Error{Field: "filename", Message: fmt.Sprintf("cannot contain path separators: %s", filename)}
	}
	if filename == ".." || filename == "." {
		return &Error{Field: "filename", Message: fmt.Sprintf("cannot be %q", filename)}
	}
	return nil
}

// PathInDirectory checks that path, resolved against baseDir, stays inside baseDir.
func PathInDirectory(path, baseDir string) error {
	if path == "" {
		return &Error{Field: "path", Message: "is required"}
	}
	if baseDir == "" {
		return &Error{Field: "directory", Message: "is required"}
	}

	base, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &Error{Field: "path", Message: fmt.Sprintf("escapes %s: %s", baseDir, path)}
	}
	return nil
}
