package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloudbox/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioBlobStore stores content in any S3-compatible bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

func NewMinioBlobStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool, logger *zap.Logger) (*MinioBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logger.Info("created bucket", zap.String("bucket", bucket))
	}

	return &MinioBlobStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *MinioBlobStore) Upload(ctx context.Context, content io.Reader, size int64, contentType, key string) (string, error) {
	objectName := newObjectName(key)
	info, err := s.client.PutObject(ctx, s.bucket, objectName, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload file: %v", models.ErrUnavailable, err)
	}

	s.logger.Debug("uploaded object",
		zap.String("bucket", s.bucket),
		zap.String("path", objectName),
		zap.Int64("size", info.Size))
	return objectName, nil
}

// UploadVersion uses a server-side copy, so the bytes never pass through
// this process.
func (s *MinioBlobStore) UploadVersion(ctx context.Context, version models.FileVersion) (string, error) {
	objectName := newObjectName(logicalKey(version.FilePath))
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: objectName},
		minio.CopySrcOptions{Bucket: s.bucket, Object: version.FilePath},
	)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("%w: content of version %d", models.ErrNotFound, version.VersionNumber)
		}
		return "", fmt.Errorf("%w: failed to copy object: %v", models.ErrUnavailable, err)
	}
	return objectName, nil
}

func (s *MinioBlobStore) Delete(ctx context.Context, pointer string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, pointer, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: failed to delete object: %v", models.ErrUnavailable, err)
	}
	return nil
}

func (s *MinioBlobStore) SignedURL(ctx context.Context, pointer string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, pointer, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: failed to presign object: %v", models.ErrUnavailable, err)
	}
	return u.String(), nil
}
