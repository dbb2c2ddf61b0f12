package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/storage/blob"
)

// DiskStorage stores blobs as plain files under a root directory.
type DiskStorage struct {
	root   string
	logger logger.Logger
}

func NewDiskStorage(root string, log logger.Logger) (*DiskStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &DiskStorage{root: abs, logger: log}, nil
}

// Write implements Storage.Write. The returned path is relative to the root.
func (d *DiskStorage) Write(ctx context.Context, scope, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := blob.Key(scope, filename)
	if err != nil {
		return "", err
	}
	full := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		d.logger.Error("Failed to write blob",
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Read implements Storage.Read.
func (d *DiskStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete implements Storage.Delete.
func (d *DiskStorage) Delete(ctx context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// LocalPath returns the on-disk location of path so callers can skip a copy.
func (d *DiskStorage) LocalPath(path string) (string, bool) {
	full, err := d.resolve(path)
	if err != nil {
		return "", false
	}
	return full, true
}

func (d *DiskStorage) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", blob.ErrInvalidPath
	}
	full := filepath.Join(d.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(d.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", blob.ErrInvalidPath, path)
	}
	return full, nil
}
