package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// stagingPrefix is the key prefix for staged images. A bucket lifecycle rule
// on this prefix is expected to expire old objects.
const stagingPrefix = "staging/"

// S3Config holds the configuration for S3 staging.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string        // Optional: for custom S3-compatible endpoints
	AccessKeyID     string        // Optional: AWS access key ID
	SecretAccessKey string        // Optional: AWS secret access key
	PresignTTL      time.Duration // Lifetime of the returned GET URL
}

// S3Stager uploads images to S3 and returns presigned GET URLs.
type S3Stager struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

// NewS3Stager creates a new S3Stager instance.
func NewS3Stager(ctx context.Context, cfg S3Config) (*S3Stager, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &S3Stager{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		ttl:       ttl,
	}, nil
}

// Stage uploads data under a random staging key and returns a presigned
// GET URL valid for the configured TTL.
func (s *S3Stager) Stage(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	key := stagingKey(contentType)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign S3 object: %w", err)
	}

	return req.URL, nil
}

// stagingKey builds "staging/<uuid><ext>", taking the extension from the MIME type.
func stagingKey(contentType string) string {
	ext := ""
	if m := mimetype.Lookup(contentType); m != nil {
		ext = m.Extension()
	}
	return stagingPrefix + uuid.NewString() + ext
}
