package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore provides access to the avatar object namespace. Put
// overwrites silently: re-uploading the same path replaces the blob.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// PublicURL resolves a stored key to a publicly fetchable URL.
	PublicURL(key string) string
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewMinioStore connects to MinIO, ensures the bucket exists, and marks
// it world-readable so avatar URLs resolve without signing.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, publicBaseURL string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}]
	}`, bucket)
	if err := client.SetBucketPolicy(ctx, bucket, policy); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}
	if strings.TrimSpace(publicBaseURL) == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBaseURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Put uploads an object, replacing any previous blob at the key.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublicURL resolves a key to its public address.
func (m *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicBaseURL, m.bucket, key)
}
