// Package media stores uploaded avatars in S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object storage settings.
type Config struct {
	Endpoint  string `yaml:"endpoint" envconfig:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" envconfig:"S3_BUCKET"`
	Secure    bool   `yaml:"secure" envconfig:"S3_SECURE"`
	PublicURL string `yaml:"public_url" envconfig:"S3_PUBLIC_URL"`
}

// Store saves a named object and returns its public URL.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
}

type s3Store struct {
	client *minio.Client
	bucket string
	public string
}

// NewS3 connects to the object storage and creates the bucket when missing.
func NewS3(ctx context.Context, cfg Config) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}
	public := strings.TrimSuffix(cfg.PublicURL, "/")
	if public == "" {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &s3Store{client: client, bucket: cfg.Bucket, public: public}, nil
}

func (s *s3Store) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"uploaded-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", name, err)
	}
	return s.public + "/" + s.bucket + "/" + url.PathEscape(name), nil
}
