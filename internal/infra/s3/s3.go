package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// Archive keeps uploaded contact files in a bucket.
type Archive struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

func NewArchive(client *minio.Client, bucket string) *Archive {
	return &Archive{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (a *Archive) EnsureBucket(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if a.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	a.ensureOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.ensureErr = err
			return
		}
		if exists {
			return
		}
		a.ensureErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
	})

	if a.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", a.bucket, a.ensureErr)
	}
	return nil
}

func (a *Archive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if a.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" || len(data) == 0 {
		return fmt.Errorf("s3 key and body are required")
	}
	if err := a.EnsureBucket(ctx); err != nil {
		return err
	}

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object to s3: %w", err)
	}
	return nil
}
