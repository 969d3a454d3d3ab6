package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOStorage holds the bytes of draft images
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	endpoint   string
}

// NewMinIOStorage creates a new MinIO storage client
func NewMinIOStorage(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	storage := &MinIOStorage{
		client:     minioClient,
		bucketName: bucketName,
		endpoint:   endpoint,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to check bucket existence for %s (will continue)", bucketName)
	} else if !exists {
		// Drafts are private, no public read policy
		if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Error().Err(err).Msgf("Failed to create bucket %s", bucketName)
		} else {
			log.Info().Msgf("Bucket %s created successfully", bucketName)
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucketName).
		Msg("MinIO storage initialized")

	return storage, nil
}

// DraftImageKey is the object key of one draft image
func DraftImageKey(owner, draftKey, imageID, name, contentType string) string {
	ext := path.Ext(name)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("drafts/%s/%s/%s%s", sanitizeSegment(owner), draftKey, sanitizeSegment(imageID), ext)
}

// UploadImage stores data under key
func (s *MinIOStorage) UploadImage(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int("size", len(data)).
		Msg("Draft image uploaded")

	return nil
}

// GetImage reads the bytes stored under key
func (s *MinIOStorage) GetImage(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", key, err)
	}
	return data, nil
}

// DeleteImage removes the object stored under key
func (s *MinIOStorage) DeleteImage(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}

	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	log.Debug().
		Str("object_name", key).
		Msg("Draft image deleted")

	return nil
}

// HealthCheck verifies the MinIO connection
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
