package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	apperrors "github.com/tracevine/tracevine-backend/internal/pkg/errors"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
)

// Store is the content-addressable blob contract the pipeline consumes.
// Keys are opaque to the store; the pipeline uses the schemes in keys.go.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

type gcsStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewGCSStore builds a GCS-backed store. BLOB_GCS_BUCKET_NAME names the
// bucket; STORAGE_EMULATOR_HOST switches to the local emulator without
// credentials.
func NewGCSStore(ctx context.Context, log *logger.Logger) (Store, error) {
	bucket := strings.TrimSpace(os.Getenv("BLOB_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var BLOB_GCS_BUCKET_NAME")
	}

	var opts []option.ClientOption
	if emulator := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); emulator != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	serviceLog := log.With("service", "BlobStore")
	serviceLog.Info("blob store initialized", "bucket", bucket)

	return &gcsStore{log: serviceLog, client: client, bucket: bucket}, nil
}

func (s *gcsStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", apperrors.ErrInvalidArgument
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close blob %s: %w", key, err)
	}
	return key, nil
}

func (s *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (s *gcsStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return true, nil
}

func (s *gcsStore) DeletePrefix(ctx context.Context, prefix string) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list prefix %s: %w", prefix, err)
		}
		if dErr := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); dErr != nil &&
			!errors.Is(dErr, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete blob %s: %w", attrs.Name, dErr)
		}
	}
}
