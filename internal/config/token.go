package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoToken is returned when the token file is missing or empty.
var ErrNoToken = errors.New("no token stored")

// ReadTokenFile reads a session token from a file.
// The file should contain only the token (whitespace is trimmed).
// A missing or empty file yields ErrNoToken. Permissions wider than 0600
// produce a warning on warn (pass nil to skip).
func ReadTokenFile(path string, warn io.Writer) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	if mode := info.Mode().Perm(); mode&0077 != 0 && warn != nil {
		fmt.Fprintf(warn, "Warning: Token file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// WriteTokenFile writes a session token with owner-only permissions (0600).
func WriteTokenFile(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot write empty token")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a half-written token
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save token file: %w", err)
	}
	return nil
}

// RemoveTokenFile deletes the token file. A missing file is not an error.
func RemoveTokenFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
