//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kbcstorage/storage-go/storagetypes"
)

// LocalStackRegion is the region every LocalStack bucket lives in.
const LocalStackRegion = "us-east-1"

// LocalStackCredentials are accepted by LocalStack for any bucket. They
// form a complete triple so they pass the same checks as delegated
// credentials.
var LocalStackCredentials = storagetypes.Credentials{
	AccessKeyID:     "test",
	SecretAccessKey: "test",
	SessionToken:    "test",
}

// LocalStack is a running LocalStack container with S3 enabled.
type LocalStack struct {
	Endpoint string
	admin    *s3.Client
}

// StartLocalStack starts a LocalStack container for the test and
// terminates it on cleanup. The test is skipped in short mode.
func StartLocalStack(t *testing.T) *LocalStack {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping LocalStack test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start LocalStack: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate LocalStack: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("LocalStack host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("LocalStack port: %v", err)
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(LocalStackRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			LocalStackCredentials.AccessKeyID,
			LocalStackCredentials.SecretAccessKey,
			LocalStackCredentials.SessionToken,
		)),
	)
	if err != nil {
		t.Fatalf("LocalStack client config: %v", err)
	}
	admin := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &LocalStack{Endpoint: endpoint, admin: admin}
}

// CreateBucket creates bucket for the test.
func (l *LocalStack) CreateBucket(t *testing.T, bucket string) {
	t.Helper()
	_, err := l.admin.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		t.Fatalf("create bucket %q: %v", bucket, err)
	}
}
