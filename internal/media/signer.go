// Package media turns stored object keys into time-limited signed URLs
// and enriches café records with them before they leave the API.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Allowed MIME types for café photo uploads.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
)

// Validation errors for the upload flow.
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
)

// AllowedMIMETypes maps allowed MIME types to their file extensions.
var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageWebP: ".webp",
}

// SigningError wraps a failure to produce a signed URL for one object.
// The enricher treats it as non-fatal and omits the image.
type SigningError struct {
	Key string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign url for %q: %v", e.Key, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Signer issues time-limited GET URLs for stored objects.
type Signer interface {
	SignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UploadTicket is a pre-signed PUT URL plus the key the client must
// later register on a café.
type UploadTicket struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// S3Signer signs GET and PUT URLs against an S3-compatible object
// store. It is safe for concurrent use.
type S3Signer struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	maxSizeBytes  int64
	uploadExpiry  time.Duration
	timeNow       func() time.Time // For testability
}

// S3Config holds credentials and addressing for the object store. A
// custom Endpoint with path-style addressing supports S3-compatible
// providers.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	MaxUploadMB     int
	UploadExpiryMin int
}

// NewS3Signer creates an S3Signer with the given configuration.
func NewS3Signer(cfg S3Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}

	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 15
	}
	if cfg.UploadExpiryMin <= 0 {
		cfg.UploadExpiryMin = 5
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	client := s3.New(opts)
	return &S3Signer{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		maxSizeBytes:  int64(cfg.MaxUploadMB) * 1024 * 1024,
		uploadExpiry:  time.Duration(cfg.UploadExpiryMin) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// Client exposes the underlying S3 client for health checks.
func (s *S3Signer) Client() *s3.Client { return s.client }

// Bucket returns the configured bucket name.
func (s *S3Signer) Bucket() string { return s.bucket }

// SignGetURL returns a pre-signed GET URL for an object key.
func (s *S3Signer) SignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", &SigningError{Key: key, Err: err}
	}
	return req.URL, nil
}

// SignUpload returns a pre-signed PUT URL for a new café photo. The
// generated key is opaque and collision-free.
func (s *S3Signer) SignUpload(ctx context.Context, contentType string, sizeBytes int64) (*UploadTicket, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}
	if sizeBytes <= 0 {
		return nil, errors.New("file size must be positive")
	}
	if sizeBytes > s.maxSizeBytes {
		return nil, ErrFileTooLarge
	}

	key := fmt.Sprintf("cafes/uploads/%s%s", uuid.New().String(), ext)

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(sizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.uploadExpiry
	})
	if err != nil {
		return nil, &SigningError{Key: key, Err: err}
	}

	return &UploadTicket{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.uploadExpiry),
	}, nil
}
