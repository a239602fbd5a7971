package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/basel-ax/fitroom/internal/config"
	"github.com/basel-ax/fitroom/internal/domain"
)

// MinioStore stores uploaded images in an S3-compatible bucket
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string

	mu          sync.Mutex
	bucketReady bool
}

var _ domain.ImageStore = (*MinioStore)(nil)

// NewMinioStore creates a store for the configured bucket. The bucket is
// created on first upload if it does not exist.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "tryon-images"
	}

	return &MinioStore{
		client:  client,
		bucket:  bucket,
		baseURL: publicBaseURL(endpoint, bucket, cfg.UseSSL, cfg.PublicBaseURL),
	}, nil
}

// Put uploads data under objectName and returns its public URL
func (s *MinioStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	return objectURL(s.baseURL, objectName), nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	s.bucketReady = true
	return nil
}

// publicBaseURL is the prefix uploaded object names are appended to. An
// explicit public URL already points at the bucket.
func publicBaseURL(endpoint, bucket string, useSSL bool, public string) string {
	if public = strings.TrimRight(strings.TrimSpace(public), "/"); public != "" {
		return public
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint + "/" + bucket
}

func objectURL(base, objectName string) string {
	parts := strings.Split(objectName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}
