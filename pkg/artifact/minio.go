package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioStore keeps bundles in an S3-compatible bucket. A single PutObject
// replaces the latest object, so schema and model change together.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *MinioStore) key(object string) string {
	if s.prefix == "" {
		return object
	}
	return path.Join(s.prefix, object)
}

func (s *MinioStore) Save(ctx context.Context, name string, bundle Bundle) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	payload, err := Encode(bundle)
	if err != nil {
		return "", err
	}
	if err := s.put(ctx, s.key(versionedName(name, bundle)), payload); err != nil {
		return "", err
	}
	latest := s.key(latestName(name))
	if err := s.put(ctx, latest, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, latest), nil
}

func (s *MinioStore) put(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) Load(ctx context.Context, name string) (Bundle, error) {
	key := s.key(latestName(name))
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Bundle{}, translateError(name, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	content, err := io.ReadAll(obj)
	if err != nil {
		return Bundle{}, translateError(name, err)
	}
	return Decode(content)
}

func translateError(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}
