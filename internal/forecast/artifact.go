package forecast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/restock-forecast/internal/storage"
)

// ArtifactStore persists serialized models under a key.
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// FileStore keeps artifacts on the local filesystem; keys are paths.
type FileStore struct{}

// NewFileStore returns a local filesystem artifact store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("artifact path %s is a directory", key)
	}
	return true, nil
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(key)
}

// Write replaces the artifact atomically through a temp file in the same dir.
func (s *FileStore) Write(_ context.Context, key string, data []byte) error {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), key)
}

// ObjectStore keeps artifacts in an S3-compatible bucket.
type ObjectStore struct {
	client storage.ObjectStorage
}

// NewObjectStore wraps an object storage client.
func NewObjectStore(client storage.ObjectStorage) *ObjectStore {
	return &ObjectStore{client: client}
}

func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	objects, err := s.client.ListObjects(ctx, key)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *ObjectStore) Read(ctx context.Context, key string) ([]byte, error) {
	return s.client.GetObject(ctx, key)
}

func (s *ObjectStore) Write(ctx context.Context, key string, data []byte) error {
	return s.client.UploadObject(ctx, key, data)
}

var (
	_ ArtifactStore = (*FileStore)(nil)
	_ ArtifactStore = (*ObjectStore)(nil)
)
