package artifact

import (
	"context"
	"fmt"
)

const (
	BackendFile  = "file"
	BackendMinio = "minio"
)

// Open returns the store for backend: a local directory or an S3-compatible
// bucket.
func Open(ctx context.Context, backend, dir string, minioCfg MinioConfig) (Store, error) {
	switch backend {
	case "", BackendFile:
		store, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendMinio:
		store, err := NewMinioStore(ctx, minioCfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}
