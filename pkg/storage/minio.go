// Package storage keeps answer images in two S3-compatible buckets: a temporary bucket
// that clients upload to through presigned links, and a permanent bucket that only
// holds keys referenced by a work.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound is returned when a key is absent from the bucket it was expected in.
var ErrObjectNotFound = errors.New("object not found")

// Config contains the connection and bucket settings.
type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	TempBucket      string
	PermanentBucket string
	PresignTTL      time.Duration
	// TempExpiryDays is the lifecycle expiration applied to the temporary bucket.
	TempExpiryDays int
}

// Client implements the two-bucket object store on top of MinIO.
type Client struct {
	client *minio.Client
	cfg    Config
	logger zerolog.Logger
}

// New constructs a storage client. Buckets are not touched until EnsureBuckets.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.TempBucket == "" || cfg.PermanentBucket == "" {
		return nil, fmt.Errorf("storage buckets must be provided")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	if cfg.TempExpiryDays <= 0 {
		cfg.TempExpiryDays = 1
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// EnsureBuckets creates missing buckets and installs the expiry rule on the temporary one.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.cfg.TempBucket, c.cfg.PermanentBucket} {
		exists, err := c.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		c.logger.Info().Str("bucket", bucket).Msg("bucket created")
	}

	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         "expire-unclaimed-uploads",
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(c.cfg.TempExpiryDays)},
	}}
	if err := c.client.SetBucketLifecycle(ctx, c.cfg.TempBucket, rules); err != nil {
		return fmt.Errorf("failed to set lifecycle on %s: %w", c.cfg.TempBucket, err)
	}

	return nil
}

// PresignUpload returns a PUT link on the temporary bucket.
func (c *Client) PresignUpload(ctx context.Context, key string) (string, error) {
	link, err := c.client.PresignedPutObject(ctx, c.cfg.TempBucket, key, c.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return link.String(), nil
}

// PresignDownload returns a GET link on the permanent bucket.
func (c *Client) PresignDownload(ctx context.Context, key string) (string, error) {
	link, err := c.client.PresignedGetObject(ctx, c.cfg.PermanentBucket, key, c.cfg.PresignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return link.String(), nil
}

// TempHead reads at most size bytes from the start of a temporary object.
func (c *Client) TempHead(ctx context.Context, key string, size int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if size > 0 {
		if err := opts.SetRange(0, size-1); err != nil {
			return nil, err
		}
	}

	object, err := c.client.GetObject(ctx, c.cfg.TempBucket, key, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer object.Close()

	head, err := io.ReadAll(io.LimitReader(object, size))
	if err != nil {
		return nil, translate(err)
	}
	return head, nil
}

// TempSize returns the size in bytes of a temporary object.
func (c *Client) TempSize(ctx context.Context, key string) (int64, error) {
	info, err := c.client.StatObject(ctx, c.cfg.TempBucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, translate(err)
	}
	return info.Size, nil
}

// Promote moves an uploaded object from the temporary bucket to the permanent one.
func (c *Client) Promote(ctx context.Context, key string) error {
	src := minio.CopySrcOptions{Bucket: c.cfg.TempBucket, Object: key}
	dst := minio.CopyDestOptions{Bucket: c.cfg.PermanentBucket, Object: key}

	if _, err := c.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("failed to promote %s: %w", key, translate(err))
	}

	if err := c.client.RemoveObject(ctx, c.cfg.TempBucket, key, minio.RemoveObjectOptions{}); err != nil {
		// The copy already succeeded; the lifecycle rule collects the leftover.
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to remove promoted temp object")
	}

	c.logger.Debug().Str("key", key).Msg("object promoted")
	return nil
}

// Delete removes keys from the permanent bucket. Every key is attempted.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := c.client.RemoveObject(ctx, c.cfg.PermanentBucket, key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
