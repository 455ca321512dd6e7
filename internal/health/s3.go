package health

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Checker implements health checking for the object store that
// serves café photos.
type S3Checker struct {
	client *s3.Client
	bucket string
}

// NewS3Checker creates a new object store health checker.
func NewS3Checker(client *s3.Client, bucket string) *S3Checker {
	return &S3Checker{
		client: client,
		bucket: bucket,
	}
}

// HealthCheck verifies the configured bucket is reachable with the
// current credentials.
func (c *S3Checker) HealthCheck(ctx context.Context) error {
	if c.bucket == "" {
		return fmt.Errorf("bucket not configured")
	}
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %q: %w", c.bucket, err)
	}
	return nil
}
