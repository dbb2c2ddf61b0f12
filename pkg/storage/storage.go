package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/storage/blob"
	"github.com/feichai0017/sit-pipeline/pkg/storage/local"
	"github.com/feichai0017/sit-pipeline/pkg/storage/minio"
	"github.com/feichai0017/sit-pipeline/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

var (
	ErrNotFound    = blob.ErrNotFound
	ErrInvalidPath = blob.ErrInvalidPath
)

// Storage writes and reads named blobs under a scope such as
// "uploads/<scanId>" or "artifacts/<scanId>". Both operations surface
// errors instead of returning empty data.
type Storage interface {
	Write(ctx context.Context, scope, filename string, content []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// LocalPather is implemented by backends whose blobs already live on disk.
type LocalPather interface {
	LocalPath(path string) (string, bool)
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(ctx context.Context, storageType StorageType, root string, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeLocal, "":
		return local.NewDiskStorage(root, log)
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// Materialize makes the blob at path available as a local file and returns
// its location plus a cleanup func. Disk backends return the file in place;
// remote backends are copied to a temp file that keeps the original extension.
func Materialize(ctx context.Context, store Storage, path string) (string, func(), error) {
	if lp, ok := store.(LocalPather); ok {
		if p, ok := lp.LocalPath(path); ok {
			if _, err := os.Stat(p); err != nil {
				return "", nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return p, func() {}, nil
		}
	}

	data, err := store.Read(ctx, path)
	if err != nil {
		return "", nil, err
	}
	tmp, err := os.CreateTemp("", "sit-*"+filepath.Ext(path))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
