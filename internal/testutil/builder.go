package testutil

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithPutObject configures the PutObject behavior.
func (b *MockBuilder) WithPutObject(
	fn func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error),
) *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithGetObject configures the GetObject behavior.
func (b *MockBuilder) WithGetObject(
	fn func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error),
) *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithListObjectsV2 configures the ListObjectsV2 behavior.
func (b *MockBuilder) WithListObjectsV2(
	fn func(context.Context, *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error),
) *MockBuilder {
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return fn(ctx, params)
	}
	return b
}

// WithSuccessfulUpload configures the mock to always return successful uploads.
func (b *MockBuilder) WithSuccessfulUpload() *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if params.Body != nil {
			_, _ = io.Copy(io.Discard, params.Body)
		}
		return &s3.PutObjectOutput{
			ETag: aws.String(`"test-etag"`),
		}, nil
	}
	return b
}

// WithObjectNotFound configures the mock to return object not found errors.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, NoSuchKeyError()
	}
	return b
}

// WithEmptyBucket configures the mock to return an empty bucket listing.
func (b *MockBuilder) WithEmptyBucket() *MockBuilder {
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return &s3.ListObjectsV2Output{
			Name:        params.Bucket,
			Prefix:      params.Prefix,
			IsTruncated: aws.Bool(false),
			KeyCount:    aws.Int32(0),
		}, nil
	}
	return b
}

// WithAccessDenied configures every operation to fail the way S3 does for
// expired or invalid credentials.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, AccessDeniedError()
	}
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, AccessDeniedError()
	}
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return nil, AccessDeniedError()
	}
	return b
}

// AccessDeniedError returns the API error S3 answers for rejected credentials.
func AccessDeniedError() error {
	return &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
}

// ExpiredTokenError returns the API error S3 answers for an expired session token.
func ExpiredTokenError() error {
	return &smithy.GenericAPIError{Code: "ExpiredToken", Message: "The provided token has expired."}
}

// NoSuchKeyError returns the typed error S3 answers for a missing key.
func NoSuchKeyError() error {
	return &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
}

// EntityTooLargeError returns the client fault S3 answers for an oversized PUT.
func EntityTooLargeError() error {
	return &smithy.GenericAPIError{Code: "EntityTooLarge", Message: "Your proposed upload exceeds the maximum allowed size.", Fault: smithy.FaultClient}
}

// SlowDownError returns the throttling error S3 answers under load.
func SlowDownError() error {
	return &smithy.GenericAPIError{Code: "SlowDown", Message: "Please reduce your request rate.", Fault: smithy.FaultServer}
}
