package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tumourscan/internal/config"
)

var tracer = otel.Tracer("tumourscan/storage")

// MinIOStore implements ScanStore on MinIO or any S3-compatible backend.
// It is safe for concurrent use.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the store and creates the scan bucket if it is missing.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check scan bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create scan bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: cli, bucket: cfg.Bucket}, nil
}

func checkConfig(cfg config.MinIOConfig) error {
	switch {
	case cfg.Endpoint == "":
		return fmt.Errorf("minio endpoint is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return fmt.Errorf("minio credentials are required")
	case cfg.Bucket == "":
		return fmt.Errorf("minio bucket is required")
	}
	return nil
}

// PutScan streams the scan straight to the bucket.
func (s *MinIOStore) PutScan(ctx context.Context, scan Scan) (StoredScan, error) {
	ctx, span := tracer.Start(ctx, "storage.PutScan")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.key", scan.Key),
		attribute.Int64("storage.size", scan.Size),
		attribute.String("storage.content_type", scan.ContentType),
	)

	info, err := s.client.PutObject(ctx, s.bucket, scan.Key, scan.Body, scan.Size, minio.PutObjectOptions{
		ContentType:  scan.ContentType,
		UserMetadata: scan.Meta.userMetadata(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object")
		return StoredScan{}, err
	}
	return StoredScan{
		Key:  scan.Key,
		Size: info.Size,
		ETag: info.ETag,
		URL:  objectURL(s.client.EndpointURL(), s.bucket, scan.Key),
	}, nil
}

func (s *MinIOStore) RemoveScan(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "storage.RemoveScan")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key))

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove object")
		return err
	}
	return nil
}

func (s *MinIOStore) DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", "inline")
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// objectURL builds a path-style URL: {endpoint}/{bucket}/{key}.
func objectURL(endpoint *url.URL, bucket, key string) string {
	u := *endpoint
	u.Path = "/" + bucket + "/" + key
	return u.String()
}
