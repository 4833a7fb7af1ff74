// Package gcp wraps the Google Cloud clients the backend stores files and
// extracts document text with.
package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// BucketService stores and retrieves the raw uploaded files plus derived
// artifacts like thumbnails. STORAGE_MODE=local keeps everything on disk
// for development without GCP credentials.
type BucketService interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	mode := strings.ToLower(envutil.GetEnv("STORAGE_MODE", "local", log))
	switch mode {
	case "gcs":
		bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET_NAME"))
		if bucketName == "" {
			return nil, fmt.Errorf("GCS_BUCKET_NAME required for gcs storage mode")
		}
		var opts []option.ClientOption
		if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
		client, err := storage.NewClient(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		serviceLog.Info("Object storage initialized", "mode", "gcs", "bucket", bucketName)
		return &gcsBucketService{client: client, bucket: bucketName, log: serviceLog}, nil
	default:
		dir := envutil.GetEnv("LOCAL_STORAGE_DIR", "./data/uploads", log)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local storage dir: %w", err)
		}
		serviceLog.Info("Object storage initialized", "mode", "local", "dir", dir)
		return &localBucketService{dir: dir, log: serviceLog}, nil
	}
}

type gcsBucketService struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

func (s *gcsBucketService) Upload(ctx context.Context, key string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q: %w", key, err)
	}
	return nil
}

func (s *gcsBucketService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return r, nil
}

func (s *gcsBucketService) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

type localBucketService struct {
	dir string
	log *logger.Logger
}

func (s *localBucketService) path(key string) string {
	return filepath.Join(s.dir, filepath.Clean("/"+key))
}

func (s *localBucketService) Upload(_ context.Context, key string, r io.Reader) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return nil
}

func (s *localBucketService) Download(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *localBucketService) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
