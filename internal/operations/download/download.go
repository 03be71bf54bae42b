package download

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/operations"
	"github.com/kbcstorage/storage-go/internal/pool"
	"github.com/kbcstorage/storage-go/internal/s3api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Result describes a completed download.
type Result struct {
	Key      string
	Size     int64
	Duration time.Duration
}

// Downloader handles S3 download operations with progress tracking support.
type Downloader struct {
	s3Client s3api.S3API
}

// New creates a new Downloader instance.
func New(s3Client s3api.S3API) *Downloader {
	return &Downloader{
		s3Client: s3Client,
	}
}

// Open starts fetching an object and returns its body unread. The caller
// must close the body. The returned size is -1 when the store did not
// report one.
func (d *Downloader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	output, err := d.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, errors.NewObjectError("get", bucket, key, operations.Classify(err))
	}

	size := int64(-1)
	if output.ContentLength != nil {
		size = *output.ContentLength
	}
	return output.Body, size, nil
}

// Download copies an object into writer. Faults while reading the object
// are classified as transfer errors; faults while writing are returned
// as they are since retrying the fetch cannot fix them.
func (d *Downloader) Download(
	ctx context.Context,
	bucket, key string,
	writer io.Writer,
	tracker storagetypes.ProgressTracker,
) (*Result, error) {
	startTime := time.Now()

	body, size, err := d.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	var reader io.Reader = body
	if tracker != nil {
		reader = &progressReader{
			reader:          body,
			progressTracker: tracker,
			total:           size,
		}
	}

	w := &trackedWriter{w: writer}
	written, err := pool.Copy(w, reader, size)
	if err != nil {
		if w.err != nil {
			return nil, errors.NewObjectError("download", bucket, key, err).WithMessage("writing local file")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.NewObjectError("download", bucket, key, ctxErr)
		}
		return nil, errors.NewObjectError("download", bucket, key, operations.Classify(err))
	}

	if size >= 0 && written != size {
		return nil, errors.NewObjectError("download", bucket, key, errors.ErrTransfer).
			WithMessage("short read")
	}

	if tracker != nil {
		tracker.Update(written, written)
	}

	return &Result{
		Key:      key,
		Size:     written,
		Duration: time.Since(startTime),
	}, nil
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader          io.Reader
	progressTracker storagetypes.ProgressTracker
	total           int64
	bytesRead       int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		pr.progressTracker.Update(pr.bytesRead, pr.total)
	}
	//nolint:wrapcheck // io.Reader interface contract - error comes from underlying reader
	return n, err
}

// trackedWriter remembers write failures so they can be told apart from
// read failures after io.Copy.
type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	//nolint:wrapcheck // io.Writer interface contract
	return n, err
}
