package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/internal/atomicfile"
	"github.com/kbcstorage/storage-go/internal/credentials"
	"github.com/kbcstorage/storage-go/internal/manifest"
	"github.com/kbcstorage/storage-go/internal/objectstore"
	"github.com/kbcstorage/storage-go/internal/pool"
	"github.com/kbcstorage/storage-go/internal/validation"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Files groups the file operations of a Client.
type Files struct {
	c *Client
}

// Upload stores a local file on the platform and returns its file id.
//
// The platform entry is created first and the bytes are then written to the
// object store with the upload credentials it returned. When the bytes
// cannot be written the entry is deleted again, so a failed upload never
// leaves a file that looks complete.
//
// Example:
//
//	id, err := client.Files().Upload(ctx, "/data/orders.csv",
//	    storage.WithTags("orders", "daily"),
//	    storage.WithCompress(),
//	)
func (f *Files) Upload(ctx context.Context, path string, opts ...storagetypes.UploadOption) (int64, error) {
	cfg := storagetypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.Struct("upload", &cfg); err != nil {
		return 0, err
	}
	if err := validation.ValidateTags(cfg.Tags); err != nil {
		return 0, err
	}
	if path == "" {
		return 0, errors.NewError("upload", errors.ErrInvalidInput).WithMessage("path cannot be empty")
	}

	fsys := f.c.fs
	info, err := fsys.Stat(path)
	if err != nil {
		return 0, errors.NewError("upload", fmt.Errorf("%w: %w", errors.ErrInvalidInput, err))
	}
	if info.IsDir() {
		return 0, errors.NewError("upload", errors.ErrInvalidInput).
			WithMessage("path is a directory: " + path)
	}

	name := cfg.FileName
	if name == "" {
		name = filepath.Base(path)
	}

	src, size := path, info.Size()
	if cfg.Compress {
		gzPath, gzSize, err := compressFile(fsys, path)
		if err != nil {
			return 0, errors.NewError("upload", err)
		}
		defer func() {
			_ = fsys.Remove(gzPath)
		}()
		src, size = gzPath, gzSize
		if !strings.HasSuffix(name, ".gz") {
			name += ".gz"
		}
	}

	if err := validation.ValidateFileName(name); err != nil {
		return 0, err
	}

	contentType, err := detectContentType(fsys, src)
	if err != nil {
		return 0, errors.NewError("upload", err)
	}

	file, err := f.c.resolver.Prepare(ctx, credentials.PrepareRequest{
		Name:        name,
		SizeBytes:   size,
		Tags:        cfg.Tags,
		IsPublic:    cfg.IsPublic,
		IsPermanent: cfg.IsPermanent,
		IsEncrypted: cfg.IsEncrypted,
		Notify:      cfg.Notify,
	})
	if err != nil {
		return 0, err
	}

	f.c.logger.InfoContext(ctx, "uploading file",
		"file_id", file.ID,
		"name", name,
		"size", size,
		"content_type", contentType)

	if err := f.put(ctx, file, src, size, name, contentType, cfg); err != nil {
		if cfg.ProgressTracker != nil {
			cfg.ProgressTracker.Error(err)
		}
		// The entry must not survive without its bytes.
		if delErr := f.c.resolver.Delete(context.WithoutCancel(ctx), file.ID); delErr != nil && !errors.IsNotFound(delErr) {
			err = stderrors.Join(err, delErr)
		}
		return 0, err
	}

	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Complete()
	}
	f.c.logger.InfoContext(ctx, "uploaded file", "file_id", file.ID, "size", size)

	return file.ID, nil
}

func (f *Files) put(
	ctx context.Context,
	file *storagetypes.FileResource,
	src string,
	size int64,
	name, contentType string,
	cfg storagetypes.UploadOptionConfig,
) error {
	params := file.UploadParams
	if err := validation.ValidateACL(params.ACL); err != nil {
		return fileError("upload", file.ID, err)
	}

	store, err := objectstore.Open(ctx, f.c.factory, *params.Credentials, file.Region, f.c.logger)
	if err != nil {
		return fileError("upload", file.ID, err)
	}

	opts := objectstore.PutOptions{
		ACL:                params.ACL,
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%s;", name),
		Encrypt:            cfg.IsEncrypted,
		ProgressTracker:    relay(cfg.ProgressTracker),
	}

	attrs := []any{"file_id", file.ID, "bucket", params.Bucket, "key", params.Key}
	return f.c.withRetry(ctx, "upload", attrs, func() error {
		body, err := f.c.fs.Open(src)
		if err != nil {
			return errors.NewFileError("upload", file.ID, err)
		}
		defer func() {
			_ = body.Close()
		}()

		if err := store.Put(ctx, params.Bucket, params.Key, body, size, opts); err != nil {
			return fileError("upload", file.ID, err)
		}
		return nil
	})
}

// Download writes the content of a file to targetDir and returns the path
// of the written file. targetDir is created when missing.
//
// The content becomes visible under its final name only once complete; a
// failed download leaves neither the file nor its temporary artifacts.
// Sliced files are fetched part by part with bounded parallelism and
// reassembled in manifest order.
func (f *Files) Download(
	ctx context.Context,
	fileID int64,
	targetDir string,
	opts ...storagetypes.DownloadOption,
) (string, error) {
	cfg := storagetypes.DownloadOptionConfig{Federation: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.Struct("download", &cfg); err != nil {
		return "", err
	}
	if err := validation.ValidateFileID(fileID); err != nil {
		return "", err
	}
	if targetDir == "" {
		return "", errors.NewFileError("download", fileID, errors.ErrInvalidInput).
			WithMessage("target directory cannot be empty")
	}
	if cfg.FileName != "" {
		if err := validation.ValidateFileName(cfg.FileName); err != nil {
			return "", fileError("download", fileID, err)
		}
	}
	if err := fs.EnsureDir(f.c.fs, targetDir); err != nil {
		return "", errors.NewFileError("download", fileID, err)
	}

	file, err := f.c.resolver.Resolve(ctx, fileID, cfg.Federation)
	if err != nil {
		return "", err
	}

	name := cfg.FileName
	if name == "" {
		name = file.Name
	}
	if err := validation.ValidateFileName(name); err != nil {
		return "", fileError("download", fileID, err)
	}

	loc, err := file.Locator()
	if err != nil {
		return "", errors.NewFileError("download", fileID, fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err))
	}

	finalPath := filepath.Join(targetDir, name)
	f.c.logger.InfoContext(ctx, "downloading file",
		"file_id", fileID,
		"locator", loc.Kind.String(),
		"bucket", loc.Bucket,
		"key", loc.Key,
		"path", finalPath)

	err = f.download(ctx, file, loc, finalPath, cfg)
	if err != nil {
		if cfg.ProgressTracker != nil {
			cfg.ProgressTracker.Error(err)
		}
		return "", err
	}

	if cfg.ProgressTracker != nil {
		cfg.ProgressTracker.Complete()
	}
	f.c.logger.InfoContext(ctx, "downloaded file", "file_id", fileID, "path", finalPath)

	return finalPath, nil
}

func (f *Files) download(
	ctx context.Context,
	file *storagetypes.FileResource,
	loc storagetypes.Locator,
	finalPath string,
	cfg storagetypes.DownloadOptionConfig,
) error {
	if !cfg.Federation {
		if loc.Kind == storagetypes.LocatorSliced {
			return errors.NewFileError("download", file.ID, errors.ErrInvalidInput).
				WithMessage("sliced files can only be downloaded with federation")
		}
		return f.downloadURL(ctx, file, finalPath, cfg.ProgressTracker)
	}

	store, err := objectstore.Open(ctx, f.c.factory, *file.Credentials, file.Region, f.c.logger)
	if err != nil {
		return fileError("download", file.ID, err)
	}

	switch loc.Kind {
	case storagetypes.LocatorDirect:
		return f.downloadDirect(ctx, store, file.ID, loc, finalPath, cfg.ProgressTracker)
	case storagetypes.LocatorSliced:
		concurrency := cfg.PartConcurrency
		if concurrency == 0 {
			concurrency = f.c.cfg.PartConcurrency
		}
		return f.downloadSliced(ctx, store, file.ID, loc, finalPath, concurrency, cfg.ProgressTracker)
	default:
		return errors.NewFileError("download", file.ID, errors.ErrInvalidResponse).
			WithMessage("unknown locator " + loc.Kind.String())
	}
}

func (f *Files) downloadDirect(
	ctx context.Context,
	store *objectstore.Store,
	fileID int64,
	loc storagetypes.Locator,
	finalPath string,
	tracker storagetypes.ProgressTracker,
) error {
	attrs := []any{"file_id", fileID, "bucket", loc.Bucket, "key", loc.Key}
	return f.c.withRetry(ctx, "download", attrs, func() error {
		out, err := atomicfile.Create(f.c.fs, finalPath)
		if err != nil {
			return errors.NewFileError("download", fileID, err)
		}
		if _, err := store.Download(ctx, loc.Bucket, loc.Key, out, relay(tracker)); err != nil {
			return stderrors.Join(fileError("download", fileID, err), out.Abort())
		}
		if err := out.Commit(); err != nil {
			return errors.NewFileError("download", fileID, err)
		}
		return nil
	})
}

func (f *Files) downloadSliced(
	ctx context.Context,
	store *objectstore.Store,
	fileID int64,
	loc storagetypes.Locator,
	finalPath string,
	concurrency int,
	tracker storagetypes.ProgressTracker,
) error {
	parts, err := manifest.ResolveParts(ctx, store, fileID, loc)
	if err != nil {
		return err
	}

	f.c.logger.DebugContext(ctx, "resolved manifest",
		"file_id", fileID,
		"parts", len(parts),
		"concurrency", concurrency)

	fsys := f.c.fs
	dir, name := filepath.Dir(finalPath), filepath.Base(finalPath)
	progress := newPartsProgress(tracker, len(parts), manifest.TotalSize(parts))

	// Each part lands in its own scratch file; indices are stable so
	// reassembly ignores completion order.
	partPaths := make([]string, len(parts))
	sizes := make([]int64, len(parts))
	defer func() {
		for _, p := range partPaths {
			if p != "" {
				_ = fsys.Remove(p)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, part := range parts {
		g.Go(func() error {
			path, size, err := f.fetchPart(gctx, store, fileID, part, dir, name, progress.part(part.Index))
			if err != nil {
				return err
			}
			partPaths[part.Index] = path
			sizes[part.Index] = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := atomicfile.Create(fsys, finalPath)
	if err != nil {
		return errors.NewFileError("download", fileID, err)
	}
	if err := concatParts(fsys, out, partPaths, sizes); err != nil {
		return stderrors.Join(errors.NewFileError("download", fileID, err), out.Abort())
	}
	if err := out.Commit(); err != nil {
		return errors.NewFileError("download", fileID, err)
	}
	return nil
}

// fetchPart downloads one part into a scratch file in dir and returns its
// path and size. Nothing is left behind on failure.
func (f *Files) fetchPart(
	ctx context.Context,
	store *objectstore.Store,
	fileID int64,
	part manifest.Part,
	dir, name string,
	tracker storagetypes.ProgressTracker,
) (string, int64, error) {
	var (
		path string
		size int64
	)
	attrs := []any{"file_id", fileID, "part", part.Index, "key", part.Key}
	err := f.c.withRetry(ctx, "part download", attrs, func() error {
		tmp, err := atomicfile.Scratch(f.c.fs, dir, fmt.Sprintf("%s.part%04d", name, part.Index))
		if err != nil {
			return errors.NewFileError("download", fileID, err)
		}
		n, err := store.Download(ctx, part.Bucket, part.Key, tmp, tracker)
		closeErr := tmp.Close()
		if err == nil && closeErr != nil {
			err = errors.NewFileError("download", fileID, closeErr)
		}
		if err != nil {
			_ = f.c.fs.Remove(tmp.Name())
			return fileError("download", fileID, err)
		}
		path, size = tmp.Name(), n
		return nil
	})
	return path, size, err
}

// downloadURL fetches a non-sliced file through its signed URL, for tokens
// that may read files but not federate.
func (f *Files) downloadURL(
	ctx context.Context,
	file *storagetypes.FileResource,
	finalPath string,
	tracker storagetypes.ProgressTracker,
) error {
	if file.URL == "" {
		return errors.NewFileError("download", file.ID, errors.ErrInvalidResponse).
			WithMessage("file has no download url")
	}

	attrs := []any{"file_id", file.ID}
	return f.c.withRetry(ctx, "download", attrs, func() error {
		out, err := atomicfile.Create(f.c.fs, finalPath)
		if err != nil {
			return errors.NewFileError("download", file.ID, err)
		}
		if err := f.fetchURL(ctx, file.URL, out, tracker); err != nil {
			return stderrors.Join(errors.NewFileError("download", file.ID, err), out.Abort())
		}
		if err := out.Commit(); err != nil {
			return errors.NewFileError("download", file.ID, err)
		}
		return nil
	})
}

func (f *Files) fetchURL(ctx context.Context, url string, w io.Writer, tracker storagetypes.ProgressTracker) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
	}

	resp, err := f.c.transferHTTP.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", errors.ErrTransfer, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return errors.ErrObjectNotFound
	case resp.StatusCode == http.StatusForbidden:
		return errors.ErrAccessDenied
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", errors.ErrTransfer, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", errors.ErrInvalidResponse, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if tracker != nil {
		body = io.TeeReader(resp.Body, &progressCounter{tracker: tracker, total: resp.ContentLength})
	}

	written, err := pool.Copy(w, body, resp.ContentLength)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", errors.ErrTransfer, err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("%w: short read", errors.ErrTransfer)
	}
	return nil
}

type progressCounter struct {
	tracker storagetypes.ProgressTracker
	total   int64
	n       int64
}

func (p *progressCounter) Write(b []byte) (int, error) {
	p.n += int64(len(b))
	p.tracker.Update(p.n, p.total)
	return len(b), nil
}

// Detail returns the metadata of a file. Credentials are included only
// with WithFederationToken.
func (f *Files) Detail(
	ctx context.Context,
	fileID int64,
	opts ...storagetypes.DetailOption,
) (*storagetypes.FileResource, error) {
	cfg := storagetypes.DetailOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.ValidateFileID(fileID); err != nil {
		return nil, err
	}
	return f.c.resolver.Resolve(ctx, fileID, cfg.FederationToken)
}

// Delete removes a file and its content. Deleting a missing file yields
// errors.ErrNotFound, which callers treating delete as idempotent can
// ignore.
func (f *Files) Delete(ctx context.Context, fileID int64) error {
	if err := validation.ValidateFileID(fileID); err != nil {
		return err
	}
	if err := f.c.resolver.Delete(ctx, fileID); err != nil {
		return err
	}
	f.c.logger.InfoContext(ctx, "deleted file", "file_id", fileID)
	return nil
}

// List returns files matching the options, newest first.
func (f *Files) List(ctx context.Context, opts ...storagetypes.ListOption) ([]storagetypes.FileResource, error) {
	cfg := storagetypes.ListOptionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validation.Struct("list", &cfg); err != nil {
		return nil, err
	}
	if err := validation.ValidateTags(cfg.Tags); err != nil {
		return nil, err
	}

	return f.c.resolver.List(ctx, credentials.ListFilter{
		Tags:    cfg.Tags,
		Limit:   cfg.Limit,
		Offset:  cfg.Offset,
		Query:   cfg.Query,
		SinceID: cfg.SinceID,
		MaxID:   cfg.MaxID,
		RunID:   cfg.RunID,
	})
}

// fileError attaches fileID to err, reusing an *errors.Error that has no
// file context yet.
func fileError(op string, fileID int64, err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.FileID == 0 {
		e.WithFileID(fileID)
		return err
	}
	return errors.NewFileError(op, fileID, err)
}
