// Package imagestore keeps report photos in an S3-compatible bucket
// (Cloudflare R2 in production) and serves them from a public base URL.
package imagestore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/ports"
)

// Config describes the bucket.
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	MaxSize         int64
}

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Store implements ports.ImageStore on S3.
type Store struct {
	client  s3API
	bucket  string
	baseURL string
	maxSize int64
	now     func() time.Time
}

var _ ports.ImageStore = (*Store)(nil)

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the SDK's default chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return newStore(client, cfg), nil
}

func newStore(client s3API, cfg Config) *Store {
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/",
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

// Put uploads the image under "<unix-millis>-<filename>" and returns its
// public URL.
func (s *Store) Put(ctx context.Context, image ports.Image) (string, error) {
	if s.maxSize > 0 && image.Size > s.maxSize {
		return "", domain.NewValidationErrorWithValue("image",
			fmt.Sprintf("must be at most %d bytes", s.maxSize), image.Size)
	}

	key := objectKey(s.now(), image.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   image.Body,
	}

	if image.ContentType != "" {
		input.ContentType = aws.String(image.ContentType)
	}

	if image.Size > 0 {
		input.ContentLength = aws.Int64(image.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", domain.NewStorageError("upload image", err)
	}

	return s.baseURL + url.PathEscape(key), nil
}

// Delete removes the object named by the last path segment of rawURL.
func (s *Store) Delete(ctx context.Context, rawURL string) error {
	key, err := keyFromURL(rawURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.NewStorageError("delete image", err)
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "image-store" }

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func objectKey(at time.Time, name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = "image"
	}

	return fmt.Sprintf("%d-%s", at.UnixMilli(), base)
}

func keyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", domain.NewValidationErrorWithValue("imageUrl", "is not a URL", rawURL)
	}

	key := path.Base(u.Path)
	if key == "." || key == "/" {
		return "", domain.NewValidationErrorWithValue("imageUrl", "has no object key", rawURL)
	}

	return key, nil
}
