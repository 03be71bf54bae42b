package upload

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/operations"
	"github.com/kbcstorage/storage-go/internal/s3api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Config holds the headers and tracking for one put.
type Config struct {
	ACL                string
	ContentType        string
	ContentDisposition string
	ContentEncoding    string
	Encrypt            bool
	ProgressTracker    storagetypes.ProgressTracker
}

// Result describes a completed put.
type Result struct {
	Key      string
	Size     int64
	ETag     string
	Duration time.Duration
}

// Uploader handles S3 put operations with progress tracking support.
type Uploader struct {
	s3Client s3api.S3API
}

// New creates a new Uploader instance.
func New(s3Client s3api.S3API) *Uploader {
	return &Uploader{
		s3Client: s3Client,
	}
}

// Upload streams body to bucket/key. The body must be seekable so the SDK
// can sign and checksum it; size must be its exact length.
func (u *Uploader) Upload(
	ctx context.Context,
	bucket, key string,
	body io.ReadSeeker,
	size int64,
	config *Config,
) (*Result, error) {
	startTime := time.Now()
	if config == nil {
		config = &Config{}
	}

	var reader io.ReadSeeker = body
	if config.ProgressTracker != nil {
		reader = &progressReadSeeker{
			ReadSeeker:      body,
			progressTracker: config.ProgressTracker,
			total:           size,
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
	}
	if config.ContentType != "" {
		input.ContentType = aws.String(config.ContentType)
	}
	if config.ContentDisposition != "" {
		input.ContentDisposition = aws.String(config.ContentDisposition)
	}
	if config.ContentEncoding != "" {
		input.ContentEncoding = aws.String(config.ContentEncoding)
	}
	if config.ACL != "" {
		input.ACL = awstypes.ObjectCannedACL(config.ACL)
	}
	if config.Encrypt {
		input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
	}

	output, err := u.s3Client.PutObject(ctx, input)
	if err != nil {
		err = errors.NewObjectError("put", bucket, key, operations.Classify(err))
		if config.ProgressTracker != nil {
			config.ProgressTracker.Error(err)
		}
		return nil, err
	}

	if config.ProgressTracker != nil {
		config.ProgressTracker.Update(size, size)
		config.ProgressTracker.Complete()
	}

	return &Result{
		Key:      key,
		Size:     size,
		ETag:     aws.ToString(output.ETag),
		Duration: time.Since(startTime),
	}, nil
}

// progressReadSeeker reports bytes read and restarts the count when the
// SDK rewinds the body.
type progressReadSeeker struct {
	io.ReadSeeker
	progressTracker storagetypes.ProgressTracker
	total           int64
	bytesRead       int64
}

func (pr *progressReadSeeker) Read(p []byte) (int, error) {
	n, err := pr.ReadSeeker.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		pr.progressTracker.Update(pr.bytesRead, pr.total)
	}
	//nolint:wrapcheck // io.Reader interface contract - error comes from underlying reader
	return n, err
}

func (pr *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := pr.ReadSeeker.Seek(offset, whence)
	if err == nil {
		pr.bytesRead = pos
	}
	//nolint:wrapcheck // io.Seeker interface contract
	return pos, err
}
