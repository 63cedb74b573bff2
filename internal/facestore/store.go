// Package facestore keeps the face photographs extracted from verified
// cards in an S3-compatible object store.
package facestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ktp-verify/internal/entity"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Store crops face photos and writes them to the configured bucket.
type Store struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect face store: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, log: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check face bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create face bucket: %w", err)
		}
	}
	return nil
}

// Save crops the face out of the card image and uploads it, returning the
// object key used as the stored face reference.
func (s *Store) Save(ctx context.Context, nik string, cardImage []byte, box entity.BoundingBox) (string, error) {
	face, err := CropFace(cardImage, box)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("faces/%s_%d.jpg", nik, time.Now().UTC().Unix())
	_, err = s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(face), int64(len(face)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("upload face image: %w", err)
	}

	s.log.Info("facestore.saved", "key", key, "bytes", len(face))
	return key, nil
}
