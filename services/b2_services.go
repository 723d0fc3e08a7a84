package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"cloudbox/models"

	"github.com/kurin/blazer/b2"
	"go.uber.org/zap"
)

// B2BlobStore stores content in a Backblaze B2 bucket.
type B2BlobStore struct {
	client     *b2.Client
	bucketName string
	bucket     *b2.Bucket
	logger     *zap.Logger
}

func NewB2BlobStore(ctx context.Context, keyID, applicationKey, bucketName string, logger *zap.Logger) (*B2BlobStore, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &B2BlobStore{
		client:     client,
		bucketName: bucketName,
		bucket:     bucket,
		logger:     logger,
	}, nil
}

func (s *B2BlobStore) Upload(ctx context.Context, content io.Reader, size int64, contentType, key string) (string, error) {
	objectName := newObjectName(key)
	if err := s.write(ctx, objectName, contentType, content); err != nil {
		return "", err
	}
	return objectName, nil
}

// UploadVersion streams the historical object into a new one. B2 has no
// server-side copy in this client.
func (s *B2BlobStore) UploadVersion(ctx context.Context, version models.FileVersion) (string, error) {
	src := s.bucket.Object(version.FilePath)
	attrs, err := src.Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return "", fmt.Errorf("%w: content of version %d", models.ErrNotFound, version.VersionNumber)
		}
		return "", fmt.Errorf("%w: reading B2 object attrs: %v", models.ErrUnavailable, err)
	}

	reader := src.NewReader(ctx)
	defer reader.Close()

	objectName := newObjectName(logicalKey(version.FilePath))
	if err := s.write(ctx, objectName, attrs.ContentType, reader); err != nil {
		return "", err
	}
	return objectName, nil
}

func (s *B2BlobStore) Delete(ctx context.Context, pointer string) error {
	if err := s.bucket.Object(pointer).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: failed to delete file from B2: %v", models.ErrUnavailable, err)
	}
	return nil
}

// SignedURL returns a time-limited download URL for a private bucket.
func (s *B2BlobStore) SignedURL(ctx context.Context, pointer string, duration time.Duration) (string, error) {
	urlObj, err := s.bucket.Object(pointer).AuthURL(ctx, duration, "")
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate signed URL: %v", models.ErrUnavailable, err)
	}
	return urlObj.String(), nil
}

func (s *B2BlobStore) write(ctx context.Context, objectName, contentType string, content io.Reader) error {
	writer := s.bucket.Object(objectName).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))

	// Stream through a hasher instead of buffering the whole body.
	hasher := sha1.New()
	if _, err := io.Copy(io.MultiWriter(writer, hasher), content); err != nil {
		writer.Close()
		return fmt.Errorf("%w: failed to upload file to B2: %v", models.ErrUnavailable, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: failed to close B2 writer: %v", models.ErrUnavailable, err)
	}

	s.logger.Debug("uploaded object to B2",
		zap.String("bucket", s.bucketName),
		zap.String("path", objectName),
		zap.String("sha1", hex.EncodeToString(hasher.Sum(nil))))
	return nil
}
