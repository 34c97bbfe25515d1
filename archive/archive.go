// Package archive keeps the original bytes of uploaded documents in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/logging"
)

type Store interface {
	Put(ctx context.Context, documentID, filename, contentType string, data []byte) error
	Clear(ctx context.Context) error
}

// Nop discards uploads. It is used when no archive endpoint is configured.
type Nop struct{}

func (Nop) Put(context.Context, string, string, string, []byte) error { return nil }
func (Nop) Clear(context.Context) error                               { return nil }

type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// New returns a MinIO-backed store, or Nop when cfg.Endpoint is empty. The
// bucket is created on first use if missing.
func New(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (Store, error) {
	if cfg.Endpoint == "" {
		return Nop{}, nil
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	store := &MinioStore{client: client, bucket: cfg.Bucket, logger: logging.OrNop(logger)}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created archive bucket", zap.String("bucket", s.bucket))
	return nil
}

func (s *MinioStore) Put(ctx context.Context, documentID, filename, contentType string, data []byte) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := ObjectKey(documentID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Clear removes every object in the bucket.
func (s *MinioStore) Clear(ctx context.Context) error {
	removed := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", obj.Key, err)
		}
		removed++
	}
	s.logger.Info("cleared archive", zap.String("bucket", s.bucket), zap.Int("objects", removed))
	return nil
}

// ObjectKey places each upload under its document id. Directory components
// of filename are dropped.
func ObjectKey(documentID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return documentID + "/" + name
}

var (
	_ Store = Nop{}
	_ Store = (*MinioStore)(nil)
)
