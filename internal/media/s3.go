package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"pulse-chat/config"
	pulse_errors "pulse-chat/pkg/errors"
)

// BlobStore uploads message media before the referencing message is sent.
type BlobStore interface {
	// Upload stores the blob and returns a URL the other participant can
	// fetch it from.
	Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error)
}

// S3Store keeps message media in an S3 bucket, keyed per user.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Store{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimSuffix(cfg.S3PublicURL, "/"),
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	if userID == uuid.Nil || filename == "" {
		return "", pulse_errors.ErrInvalidInput
	}
	key := fmt.Sprintf("media/%s/%d%s", userID, time.Now().UnixNano(), filepath.Ext(filename))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", pulse_errors.ErrNotUploaded, err)
	}
	return s.publicURL + "/" + key, nil
}
