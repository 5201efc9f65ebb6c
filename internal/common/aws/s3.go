// internal/common/aws/s3.go
package aws

import (
	"context"
	"fmt"
	"io"
	"path"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client ObjectStore needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectStore writes onboarding documents under a fixed bucket and key prefix.
type ObjectStore struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewObjectStore(ctx context.Context, region, bucket, prefix string) (*ObjectStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return NewObjectStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewObjectStoreWithClient(client PutObjectAPI, bucket, prefix string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads body and returns the full object key.
func (s *ObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	fullKey := path.Join(s.prefix, key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(s.bucket),
		Key:           awssdk.String(fullKey),
		Body:          body,
		ContentType:   awssdk.String(contentType),
		ContentLength: awssdk.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", fullKey, err)
	}
	return fullKey, nil
}
