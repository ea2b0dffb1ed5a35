package objstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is where clients reach the bucket, e.g. a CDN in front of
	// MinIO. Defaults to the endpoint.
	PublicBaseURL string
}

type MinIO struct {
	mc      *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

var _ ImageStore = (*MinIO)(nil)

func NewMinIO(cfg MinIOConfig, logger *slog.Logger) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access key and secret key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}

	return &MinIO{
		mc:      mc,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
		logger:  logger.With("component", "objstore"),
	}, nil
}

// EnsureBucket creates the bucket if needed and makes its objects publicly
// readable, since listing image URLs are served to anonymous visitors.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		m.logger.InfoContext(ctx, "created bucket", "bucket", m.bucket)
	}

	policy := fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/*"]
  }]
}`, m.bucket)
	if err := m.mc.SetBucketPolicy(ctx, m.bucket, policy); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.mc.BucketExists(ctx, m.bucket)
	return err
}

func (m *MinIO) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if _, ok := ImageExtension(contentType); !ok {
		return "", fmt.Errorf("%w: %q", ErrContentType, contentType)
	}
	_, err := m.mc.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return m.prefix() + key, nil
}

func (m *MinIO) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(m.prefix(), url)
	if err != nil {
		return err
	}
	if err := m.mc.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *MinIO) prefix() string {
	return m.baseURL + "/" + m.bucket + "/"
}
