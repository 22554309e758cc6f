package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations used for model
// artifacts and source exports. Keys returned by ListObjects are full keys.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// Providers accepted by New.
const (
	ProviderMinio   = "minio"
	ProviderSevalla = "sevalla"
)

// Config encapsulates the connection info for an S3-compatible bucket.
type Config struct {
	Provider  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// New builds the ObjectStorage implementation named by cfg.Provider.
func New(cfg Config) (ObjectStorage, error) {
	switch cfg.Provider {
	case "", ProviderMinio:
		client, err := NewMinioClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderSevalla:
		client, err := NewSevallaClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
