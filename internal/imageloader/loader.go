// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package imageloader is the pluggable raw-byte fetcher the quality
// pipeline's Laplacian branch uses. Its object-storage backend is grounded
// in the teacher's MinIOClient (github.com/minio/minio-go/v7 wraps both
// S3 and GCS's S3-compatible endpoint); the local backend reads from a
// configured filesystem root.
package imageloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeosa/album-ai-gateway/internal/config"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/try"
)

// Loader fetches the raw bytes of an image given its ImageRef.
type Loader interface {
	Load(ctx context.Context, ref model.ImageRef) ([]byte, error)
	Close() error
}

// New builds the Loader configured by cfg.ImageMode.
func New(cfg *config.Config) (Loader, error) {
	switch cfg.ImageMode {
	case config.ImageModeLocal:
		return &localLoader{root: cfg.LocalImgPath}, nil
	case config.ImageModeS3:
		return newObjectStoreLoader("s3.amazonaws.com", cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3BucketName, true)
	case config.ImageModeGCS:
		return newObjectStoreLoader("storage.googleapis.com", cfg.GCPKey, "", cfg.GCSBucketName, true)
	default:
		return nil, fmt.Errorf("imageloader: unsupported image mode %q", cfg.ImageMode)
	}
}

type localLoader struct {
	root string
}

func (l *localLoader) Load(_ context.Context, ref model.ImageRef) ([]byte, error) {
	path := filepath.Join(l.root, filepath.Clean(string(filepath.Separator)+ref))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imageloader: failed to read %s: %w", ref, err)
	}
	return data, nil
}

func (l *localLoader) Close() error { return nil }

// objectStoreLoader fetches image bytes from an S3 or GCS bucket through
// minio-go's S3-compatible client, the same wrapper shape as the
// teacher's MinIOClient (construct once, GetObject per key).
type objectStoreLoader struct {
	client *minio.Client
	bucket string
}

func newObjectStoreLoader(endpoint, accessKey, secretKey, bucket string, secure bool) (*objectStoreLoader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("imageloader: failed to construct object store client for %s: %w", endpoint, err)
	}
	return &objectStoreLoader{client: client, bucket: bucket}, nil
}

func (l *objectStoreLoader) Load(ctx context.Context, ref model.ImageRef) (data []byte, err error) {
	obj, err := l.client.GetObject(ctx, l.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("imageloader: failed to open %s: %w", ref, err)
	}
	defer try.Close(&err, obj)

	data, err = io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("imageloader: failed to read %s: %w", ref, err)
	}
	return data, nil
}

func (l *objectStoreLoader) Close() error { return nil }
