// Package objectstore binds the put, get and list operations to an S3
// client scoped to one set of delegated credentials.
//
// A Store is opened per transfer and dropped with it; nothing here caches
// clients or credentials across transfers. The adapter never retries:
// callers decide from the classified error whether another attempt makes
// sense.
package objectstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/operations/download"
	"github.com/kbcstorage/storage-go/internal/operations/list"
	"github.com/kbcstorage/storage-go/internal/operations/upload"
	"github.com/kbcstorage/storage-go/internal/s3api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// DefaultRegion is used when the platform reports no region for a file.
const DefaultRegion = "us-east-1"

// FactoryOptions tune the default S3 client factory.
type FactoryOptions struct {
	// Endpoint overrides the S3 endpoint, e.g. for an S3-compatible store.
	Endpoint string
	// ForcePathStyle addresses buckets by path instead of virtual host.
	ForcePathStyle bool
	// HTTPClient replaces the SDK's HTTP client.
	HTTPClient *http.Client
}

// NewFactory returns an ObjectStoreFactory building aws-sdk-go-v2 S3
// clients that authenticate with the given static credentials only.
func NewFactory(opts FactoryOptions) storagetypes.ObjectStoreFactory {
	return func(ctx context.Context, creds storagetypes.Credentials, region string) (storagetypes.ObjectStoreAPI, error) {
		if !creds.Complete() {
			return nil, errors.NewError("objectstore.open", errors.ErrUnauthorized).
				WithMessage("incomplete credentials")
		}
		if region == "" {
			region = DefaultRegion
		}

		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
			)),
		)
		if err != nil {
			return nil, errors.NewError("objectstore.open", err)
		}

		var s3Opts []func(*s3.Options)
		if opts.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(opts.Endpoint)
			})
		}
		if opts.ForcePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		if opts.HTTPClient != nil {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.HTTPClient = opts.HTTPClient
			})
		}

		return s3.NewFromConfig(cfg, s3Opts...), nil
	}
}

// PutOptions holds the headers and tracking for one put.
type PutOptions struct {
	ACL                string
	ContentType        string
	ContentDisposition string
	ContentEncoding    string
	Encrypt            bool
	ProgressTracker    storagetypes.ProgressTracker
}

// Store performs object-store I/O with one set of credentials.
type Store struct {
	client     s3api.S3API
	uploader   *upload.Uploader
	downloader *download.Downloader
	lister     *list.Lister
	logger     *slog.Logger
}

// Open builds a Store through factory for the given credentials.
func Open(
	ctx context.Context,
	factory storagetypes.ObjectStoreFactory,
	creds storagetypes.Credentials,
	region string,
	logger *slog.Logger,
) (*Store, error) {
	client, err := factory(ctx, creds, region)
	if err != nil {
		return nil, errors.NewError("objectstore.open", err)
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client s3api.S3API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client:     client,
		uploader:   upload.New(client),
		downloader: download.New(client),
		lister:     list.New(client),
		logger:     logger,
	}
}

// Put writes body to bucket/key.
func (s *Store) Put(
	ctx context.Context,
	bucket, key string,
	body io.ReadSeeker,
	size int64,
	opts PutOptions,
) error {
	result, err := s.uploader.Upload(ctx, bucket, key, body, size, &upload.Config{
		ACL:                opts.ACL,
		ContentType:        opts.ContentType,
		ContentDisposition: opts.ContentDisposition,
		ContentEncoding:    opts.ContentEncoding,
		Encrypt:            opts.Encrypt,
		ProgressTracker:    opts.ProgressTracker,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "object put failed",
			"bucket", bucket, "key", key, "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "object put",
		"bucket", bucket,
		"key", key,
		"size", result.Size,
		"duration", result.Duration)
	return nil
}

// Get opens a lazy stream of the object. The caller closes it.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	return s.downloader.Open(ctx, bucket, key)
}

// Download copies bucket/key into w and returns the number of bytes written.
func (s *Store) Download(
	ctx context.Context,
	bucket, key string,
	w io.Writer,
	tracker storagetypes.ProgressTracker,
) (int64, error) {
	result, err := s.downloader.Download(ctx, bucket, key, w, tracker)
	if err != nil {
		s.logger.DebugContext(ctx, "object get failed",
			"bucket", bucket, "key", key, "error", err)
		return 0, err
	}

	s.logger.DebugContext(ctx, "object get",
		"bucket", bucket,
		"key", key,
		"size", result.Size,
		"duration", result.Duration)
	return result.Size, nil
}

// List returns every object under prefix in store order.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]storagetypes.Object, error) {
	return s.lister.ListAll(ctx, &list.Config{Bucket: bucket, Prefix: prefix})
}
