package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/face-index/internal/config"
)

// MinioStore keeps the snapshot as one object in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinioStore connects to the configured endpoint. The bucket must exist.
func NewMinioStore(cfg *config.SnapshotConfig) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, cfg.Object), nil
}

func NewMinioStoreWithClient(client *minio.Client, bucket, object string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, object: object}
}

func (s *MinioStore) Location() string {
	return "s3://" + s.bucket + "/" + s.object
}

func (s *MinioStore) Put(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (s *MinioStore) Get(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func notFound(err error) error {
	code := minio.ToErrorResponse(err).Code
	if code == "NoSuchKey" || code == "NotFound" {
		return ErrNotFound
	}
	return err
}
