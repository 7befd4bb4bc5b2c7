package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrInvalidRef is returned for references that are not plain file names.
var ErrInvalidRef = errors.New("invalid asset reference")

// Storage keeps overlay assets as plain files under a base directory.
type Storage struct {
	basePath string
}

// NewStorage creates a Storage rooted at basePath, creating the directory if needed.
func NewStorage(basePath string) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}

	return &Storage{basePath: basePath}, nil
}

// Save writes src to a file called name and returns the reference to it.
func (s *Storage) Save(_ context.Context, name string, src io.Reader) (string, error) {
	dstPath, err := s.path(name)
	if err != nil {
		return "", err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return name, nil
}

// Open returns a reader over the stored asset.
func (s *Storage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	return f, nil
}

// LocalPath returns the on-disk location of ref.
func (s *Storage) LocalPath(_ context.Context, ref string) (string, error) {
	path, err := s.path(ref)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	return path, nil
}

// Delete removes the asset. Deleting a missing asset is not an error.
func (s *Storage) Delete(_ context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}

	return nil
}

func (s *Storage) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	return filepath.Join(s.basePath, ref), nil
}
