package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures access to an S3-compatible bucket.
type MinioConfig struct {
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	DownloadDir string
}

// MinioFetcher lists a bucket by prefix and downloads the newest object.
type MinioFetcher struct {
	client      *miniogo.Client
	bucket      string
	downloadDir string
}

// NewMinioFetcher creates a fetcher for cfg.Bucket.
func NewMinioFetcher(cfg MinioConfig) (*MinioFetcher, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &MinioFetcher{client: client, bucket: cfg.Bucket, downloadDir: dir}, nil
}

// FetchLatest downloads the newest object under prefix to a temporary file.
func (f *MinioFetcher) FetchLatest(ctx context.Context, prefix string) (Object, error) {
	items, err := collect(ctx, func(ctx context.Context) <-chan miniogo.ObjectInfo {
		return f.client.ListObjects(ctx, f.bucket, miniogo.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
	})
	if err != nil {
		return Object{}, fmt.Errorf("list %s/%s: %w", f.bucket, prefix, err)
	}

	latest, ok := selectLatest(items)
	if !ok {
		return Object{}, fmt.Errorf("%w: s3://%s/%s", ErrNoObjects, f.bucket, prefix)
	}

	if err := os.MkdirAll(f.downloadDir, 0o755); err != nil {
		return Object{}, fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(f.downloadDir, uuid.NewString()+filepath.Ext(latest.Key))
	if err := f.client.FGetObject(ctx, f.bucket, latest.Key, dest, miniogo.GetObjectOptions{}); err != nil {
		return Object{}, fmt.Errorf("download %s: %w", latest.Key, err)
	}

	return Object{
		Key:          latest.Key,
		LocalPath:    dest,
		LastModified: latest.LastModified.UTC().Truncate(time.Second),
		Size:         latest.Size,
		Temporary:    true,
	}, nil
}

// collect drains a listing. The listing runs under a child context that is
// cancelled on return, so an early exit stops the producer goroutine.
func collect(ctx context.Context, list func(context.Context) <-chan miniogo.ObjectInfo) ([]listing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var items []listing
	for obj := range list(ctx) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		items = append(items, listing{Key: obj.Key, LastModified: obj.LastModified, Size: obj.Size})
	}
	return items, nil
}
