package storage

import (
	"bytes"
	"classroom-api/core/config"
	"classroom-api/core/logger"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrStorageDisabled = errors.New("object storage is not configured")

// ObjectStore writes whole objects by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store targets any S3-compatible endpoint.
type S3Store struct {
	client s3Client
	bucket string
}

func NewS3Store(cfg config.StorageConfig) *S3Store {
	if !cfg.Enabled() {
		return &S3Store{}
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket}
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if s.client == nil {
		return ErrStorageDisabled
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	logger.Debug("S3Store:Put:Done", "bucket", s.bucket, "key", key, "bytes", len(body))
	return nil
}
