package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is the object storage surface the rest of the service uses.
// Two implementations exist: MinIO (minio-go, the default) and S3
// (aws-sdk-go-v2); config selects one at startup.
type Store interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	// URL returns the public URL an uploaded object is served from.
	URL(key string) string
}

// ObjectKey builds the storage key for an uploaded image:
// <folder>/<entity-id>/<timestamp><ext>. The timestamp keeps repeated
// uploads for the same entity from clobbering each other.
func ObjectKey(folder, entityID, ext string) string {
	return fmt.Sprintf("%s/%s/%d%s", folder, entityID, time.Now().UnixNano(), ext)
}

// KeyFromURL recovers the storage key from a public object URL, for
// deleting a replaced image. Returns "" when the URL is not under
// baseURL.
func KeyFromURL(baseURL, objectURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" || !strings.HasPrefix(objectURL, base+"/") {
		return ""
	}
	return strings.TrimPrefix(objectURL, base+"/")
}

// Config holds the settings for the MinIO-backed store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is the externally reachable prefix objects are
	// served from. Empty means derive one from the endpoint.
	PublicBaseURL string
}

// Client is the MinIO-backed Store.
type Client struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New creates a MinIO storage client. The bucket is not touched here;
// call EnsureBucket before serving traffic.
func New(cfg *Config) (*Client, error) {
	// minio-go expects host:port, not a URL
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}

	return &Client{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
		}
	}
	return nil
}

func (c *Client) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}
	if _, err := c.client.PutObject(ctx, c.bucket, key, reader, size, opts); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Exists checks if an object exists in storage.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence %s: %w", key, err)
	}
	return true, nil
}

// Ping checks if the storage is accessible by verifying bucket exists.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

func (c *Client) URL(key string) string {
	return c.baseURL + "/" + path.Clean(key)
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// BaseURL returns the public prefix object URLs are built from.
func (c *Client) BaseURL() string {
	return c.baseURL
}
