package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dukerupert/manutenzioni/internal/config"
)

// Bucket is a logical bucket. Objects of every bucket live in the single
// configured S3 bucket under a "<bucket>/" prefix.
type Bucket string

const (
	BucketTaskImages Bucket = "task-images"
	BucketAvatars    Bucket = "avatars"
	// BucketBackups holds database snapshots and is never served over HTTP.
	BucketBackups Bucket = "backups"
)

var (
	ErrDisabled = errors.New("blob storage is not configured")
	ErrNotFound = errors.New("object not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, input *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Storage uploads, serves and removes blobs in an S3-compatible bucket.
type Storage struct {
	mu        sync.RWMutex
	client    s3Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// New returns a Storage for cfg. When cfg is incomplete the Storage is
// disabled and every operation returns ErrDisabled.
func New(cfg config.S3, logger *slog.Logger) *Storage {
	s := &Storage{
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger.With("component", "storage"),
	}
	if cfg.Enabled() {
		s.client = newS3Client(cfg)
	}
	return s
}

func newS3Client(cfg config.S3) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Storage) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *Storage) getClient() s3Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func objectKey(bucket Bucket, key string) string {
	return string(bucket) + "/" + strings.TrimLeft(key, "/")
}

// Upload stores data under key, overwriting any existing object.
func (s *Storage) Upload(ctx context.Context, bucket Bucket, key, contentType string, data []byte) error {
	client := s.getClient()
	if client == nil {
		return ErrDisabled
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(bucket, key)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("object uploaded", "bucket", bucket, "key", key, "size", len(data))
	return nil
}

// Open returns the object's content. The caller closes the reader.
func (s *Storage) Open(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, string, error) {
	client := s.getClient()
	if client == nil {
		return nil, "", ErrDisabled
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(bucket, key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", fmt.Errorf("get %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, "", fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

// Remove deletes all keys in a single batch request. Keys that do not
// exist are not an error.
func (s *Storage) Remove(ctx context.Context, bucket Bucket, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	client := s.getClient()
	if client == nil {
		return ErrDisabled
	}

	objects := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(objectKey(bucket, k))}
	}
	out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("remove %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	s.logger.Debug("objects removed", "bucket", bucket, "count", len(keys))
	return nil
}

// PublicURL returns the address clients use to fetch the object: the
// configured public base when set, otherwise the API file route.
func (s *Storage) PublicURL(bucket Bucket, key string) string {
	escaped := (&url.URL{Path: objectKey(bucket, key)}).EscapedPath()
	if s.publicURL != "" {
		return s.publicURL + "/" + escaped
	}
	return "/api/files/" + escaped
}
