package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schoolroster/roster-client/internal/validation"
)

// SelectedFile is a file the user picked for import.
type SelectedFile struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file's content.
func (f *SelectedFile) Open() (io.ReadCloser, error) {
	return f.open()
}

// SelectPath selects a file on disk.
func SelectPath(path string) (*SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &validation.Error{Field: "file", Message: fmt.Sprintf("%s is a directory", path)}
	}
	return &SelectedFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// SelectBytes selects in-memory content, e.g. from a test or a pipe.
func SelectBytes(name string, data []byte) *SelectedFile {
	return &SelectedFile{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileSaver stores an exported payload under a file name and returns where it went.
type FileSaver interface {
	Save(name string, data []byte) (string, error)
}

// DirSaver saves into a directory, replacing any existing file atomically.
type DirSaver struct {
	Dir string
}

// Save writes data to Dir/name. The name must be a plain file name.
func (s DirSaver) Save(name string, data []byte) (string, error) {
	if err := validation.Filename(name); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)
	if err := validation.PathInDirectory(path, dir); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to set permissions on %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
