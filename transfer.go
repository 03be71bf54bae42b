package storage

import (
	"compress/gzip"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/internal/atomicfile"
	"github.com/kbcstorage/storage-go/internal/pool"
	"github.com/kbcstorage/storage-go/storagetypes"
)

const sniffLen = 512

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// the transfer retry budget is spent. Only errors.ErrTransfer is retried.
func (c *Client) withRetry(ctx context.Context, what string, attrs []any, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.transferBackoff
	b.MaxElapsedTime = 0

	//nolint:gosec // TransferRetries is validated to be in [0, 10].
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.TransferRetries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		c.logger.WarnContext(ctx, "retrying "+what,
			append(attrs, "attempt", attempt, "backoff", next, "error", err)...)
	})
}

// progressRelay forwards Update calls only. The orchestrator reports
// completion and failure once per operation, not once per attempt.
type progressRelay struct {
	tracker storagetypes.ProgressTracker
}

func relay(tracker storagetypes.ProgressTracker) storagetypes.ProgressTracker {
	if tracker == nil {
		return nil
	}
	return progressRelay{tracker: tracker}
}

func (r progressRelay) Update(n, total int64) { r.tracker.Update(n, total) }
func (progressRelay) Complete()               {}
func (progressRelay) Error(error)             {}

// partsProgress sums the progress of concurrently fetched parts.
type partsProgress struct {
	mu      sync.Mutex
	tracker storagetypes.ProgressTracker
	done    []int64
	total   int64
}

func newPartsProgress(tracker storagetypes.ProgressTracker, parts int, total int64) *partsProgress {
	if tracker == nil {
		return nil
	}
	return &partsProgress{tracker: tracker, done: make([]int64, parts), total: total}
}

func (p *partsProgress) part(i int) storagetypes.ProgressTracker {
	if p == nil {
		return nil
	}
	return partProgress{p: p, index: i}
}

type partProgress struct {
	p     *partsProgress
	index int
}

func (pp partProgress) Update(n, _ int64) {
	pp.p.mu.Lock()
	defer pp.p.mu.Unlock()
	pp.p.done[pp.index] = n
	var sum int64
	for _, d := range pp.p.done {
		sum += d
	}
	pp.p.tracker.Update(sum, pp.p.total)
}

func (partProgress) Complete()   {}
func (partProgress) Error(error) {}

// detectContentType sniffs the MIME type from the start of a local file.
func detectContentType(fsys fs.Filesystem, path string) (string, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for content type detection: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read file for content type detection: %w", err)
	}

	return mimetype.Detect(buf[:n]).String(), nil
}

// compressFile gzips path into a scratch file next to it and returns the
// scratch path and its size. The caller removes the scratch file.
func compressFile(fsys fs.Filesystem, path string) (string, int64, error) {
	src, err := fsys.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := atomicfile.Scratch(fsys, filepath.Dir(path), filepath.Base(path)+".gz")
	if err != nil {
		return "", 0, err
	}
	name := dst.Name()

	zw := gzip.NewWriter(dst)
	_, copyErr := pool.Copy(zw, src, -1)
	closeErr := zw.Close()
	fileErr := dst.Close()
	if err := stderrors.Join(copyErr, closeErr, fileErr); err != nil {
		_ = fsys.Remove(name)
		return "", 0, fmt.Errorf("failed to compress %q: %w", path, err)
	}

	info, err := fsys.Stat(name)
	if err != nil {
		_ = fsys.Remove(name)
		return "", 0, err
	}
	return name, info.Size(), nil
}

// concatParts appends the part files to dst in index order.
func concatParts(fsys fs.Filesystem, dst io.Writer, partPaths []string, sizes []int64) error {
	for i, path := range partPaths {
		if err := appendFile(fsys, dst, path, sizes[i]); err != nil {
			return err
		}
	}
	return nil
}

func appendFile(fsys fs.Filesystem, dst io.Writer, path string, size int64) error {
	src, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open part %q: %w", path, err)
	}
	defer func() {
		_ = src.Close()
	}()

	if _, err := pool.Copy(dst, src, size); err != nil {
		return fmt.Errorf("failed to append part %q: %w", path, err)
	}
	return nil
}
