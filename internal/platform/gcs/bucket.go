package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"healthshield-ai/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("object not found")

type Config struct {
	Bucket          string
	EmulatorHost    string
	CredentialsFile string
}

// BlobStore keeps uploaded document bytes in one Cloud Storage bucket.
type BlobStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*BlobStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client failed: %w", err)
	}
	serviceLog := log.With("service", "BlobStore")
	serviceLog.Info("Object storage initialized",
		"bucket", bucket,
		"emulator_host", cfg.EmulatorHost,
	)
	return &BlobStore{log: serviceLog, client: client, bucket: bucket}, nil
}

func newStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	return storage.NewClient(ctx, opts...)
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q failed: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q failed: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("open object %q failed: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open object %q failed: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q failed: %w", key, err)
	}
	return data, nil
}

// Delete removes the object. A missing object is not an error.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %q failed: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *BlobStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("get bucket attrs failed: %w", err)
	}
	return nil
}

func (s *BlobStore) Close() error {
	return s.client.Close()
}
