package storage

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// WithToken sets the Storage API token sent in the X-StorageApi-Token header.
func WithToken(token string) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Token = token
	}
}

// WithHTTPClient sets the HTTP client used for Storage API requests.
// Downloads through signed file URLs reuse its transport without its
// timeout.
func WithHTTPClient(client *http.Client) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithTimeout sets the timeout of Storage API requests made by the default
// HTTP client. Signed-URL downloads are bounded by their context only.
// Ignored when WithHTTPClient is used. Zero means no timeout.
func WithTimeout(timeout time.Duration) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem used for local files.
// The default is the operating system filesystem.
func WithFilesystem(filesystem fs.Filesystem) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithObjectStoreFactory replaces how object-store clients are built from
// delegated credentials.
func WithObjectStoreFactory(factory storagetypes.ObjectStoreFactory) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.ObjectStoreFactory = factory
	}
}

// WithEndpoint points the default object-store factory at an S3-compatible
// endpoint. With forcePathStyle buckets are addressed by path.
func WithEndpoint(endpoint string, forcePathStyle bool) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.Endpoint = endpoint
		c.ForcePathStyle = forcePathStyle
	}
}

// WithPollInterval sets the delay before the second job status query.
// Default: 1s.
func WithPollInterval(interval time.Duration) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.PollInterval = interval
	}
}

// WithMaxPollInterval caps the delay between job status queries.
// Default: 20s.
func WithMaxPollInterval(interval time.Duration) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.MaxPollInterval = interval
	}
}

// WithMaxWait bounds how long a job is waited for before ErrJobTimeout.
// Default: 30m.
func WithMaxWait(maxWait time.Duration) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.MaxWait = maxWait
	}
}

// WithTransferRetries sets how many times a transient object-store fault is
// retried per object. Default: 3.
func WithTransferRetries(retries int) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.TransferRetries = retries
	}
}

// WithPartConcurrency sets how many parts of a sliced file are fetched at
// once. Default: 4.
func WithPartConcurrency(n int) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.PartConcurrency = n
	}
}

// WithUserAgent sets the User-Agent header of Storage API requests.
func WithUserAgent(userAgent string) storagetypes.Option {
	return func(c *storagetypes.ClientConfig) {
		c.UserAgent = userAgent
	}
}

// Upload options

// WithTags attaches tags to the uploaded file.
func WithTags(tags ...string) storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithPublic makes the uploaded file publicly readable.
func WithPublic() storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.IsPublic = true
	}
}

// WithPermanent exempts the uploaded file from expiration.
func WithPermanent() storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.IsPermanent = true
	}
}

// WithEncrypted stores the file with server-side encryption.
func WithEncrypted() storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.IsEncrypted = true
	}
}

// WithNotify asks the platform to notify project members about the file.
func WithNotify() storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.Notify = true
	}
}

// WithCompress gzips the file before uploading it. The stored name gets a
// .gz suffix.
func WithCompress() storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.Compress = true
	}
}

// WithFileName stores the file under name instead of the local base name.
func WithFileName(name string) storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.FileName = name
	}
}

// WithUploadProgress reports upload progress to tracker.
func WithUploadProgress(tracker storagetypes.ProgressTracker) storagetypes.UploadOption {
	return func(c *storagetypes.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// Download options

// WithFederation controls whether delegated credentials are requested.
// Default: true. Without federation only non-sliced files can be
// downloaded, through their signed URL.
func WithFederation(enabled bool) storagetypes.DownloadOption {
	return func(c *storagetypes.DownloadOptionConfig) {
		c.Federation = enabled
	}
}

// WithDownloadProgress reports download progress to tracker. For sliced
// files the progress is summed over all parts.
func WithDownloadProgress(tracker storagetypes.ProgressTracker) storagetypes.DownloadOption {
	return func(c *storagetypes.DownloadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithDownloadPartConcurrency overrides the client's part concurrency for
// one download.
func WithDownloadPartConcurrency(n int) storagetypes.DownloadOption {
	return func(c *storagetypes.DownloadOptionConfig) {
		c.PartConcurrency = n
	}
}

// WithFileNameOverride writes the download under name instead of the
// file's platform name.
func WithFileNameOverride(name string) storagetypes.DownloadOption {
	return func(c *storagetypes.DownloadOptionConfig) {
		c.FileName = name
	}
}

// Detail options

// WithFederationToken requests delegated credentials with the detail.
func WithFederationToken() storagetypes.DetailOption {
	return func(c *storagetypes.DetailOptionConfig) {
		c.FederationToken = true
	}
}

// List options

// WithListTags lists only files carrying all of tags.
func WithListTags(tags ...string) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithLimit caps the number of listed files.
func WithLimit(limit int) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.Limit = limit
	}
}

// WithOffset skips the first offset files.
func WithOffset(offset int) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.Offset = offset
	}
}

// WithQuery filters files by a search query.
func WithQuery(query string) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.Query = query
	}
}

// WithIDRange lists files with ids in (sinceID, maxID]. Zero leaves a
// bound open.
func WithIDRange(sinceID, maxID int64) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.SinceID = sinceID
		c.MaxID = maxID
	}
}

// WithRunID lists files created within a run.
func WithRunID(runID string) storagetypes.ListOption {
	return func(c *storagetypes.ListOptionConfig) {
		c.RunID = runID
	}
}

// Export options

// WithExportLimit exports at most limit rows.
func WithExportLimit(limit int) storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.Limit = limit
	}
}

// WithFormat sets the CSV dialect: rfc, raw or escaped.
func WithFormat(format string) storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.Format = format
	}
}

// WithGzip compresses the exported file.
func WithGzip() storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.Gzip = true
	}
}

// WithChangedRange exports rows changed within [since, until]. Values are
// anything the platform accepts, e.g. "-2 days" or a timestamp.
func WithChangedRange(since, until string) storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.ChangedSince = since
		c.ChangedUntil = until
	}
}

// WithColumns exports only the named columns, in that order.
func WithColumns(columns ...string) storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.Columns = append(c.Columns, columns...)
	}
}

// WithWhere filters exported rows on column. Operator is eq or ne.
func WithWhere(column, operator string, values ...string) storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.WhereColumn = column
		c.WhereOperator = operator
		c.WhereValues = values
	}
}

// WithIncrementalExport marks the export as incremental. The platform
// accepts the flag but ignores it.
func WithIncrementalExport() storagetypes.ExportOption {
	return func(c *storagetypes.ExportOptionConfig) {
		c.IsIncremental = true
	}
}

// Load options

// WithIncremental appends loaded rows instead of replacing the table.
func WithIncremental() storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.Incremental = true
	}
}

// WithDelimiter sets the CSV field delimiter. Default: comma.
func WithDelimiter(delimiter string) storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.Delimiter = delimiter
	}
}

// WithEnclosure sets the CSV enclosure character. Default: double quote.
func WithEnclosure(enclosure string) storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.Enclosure = enclosure
	}
}

// WithEscapedBy sets the CSV escape character.
func WithEscapedBy(escapedBy string) storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.EscapedBy = escapedBy
	}
}

// WithLoadColumns names the columns of a headerless file.
func WithLoadColumns(columns ...string) storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.Columns = append(c.Columns, columns...)
	}
}

// WithoutHeaders treats the first line of the file as data.
func WithoutHeaders() storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.WithoutHeaders = true
	}
}

// WithLoadProgress reports the upload part of a load to tracker.
func WithLoadProgress(tracker storagetypes.ProgressTracker) storagetypes.LoadOption {
	return func(c *storagetypes.LoadOptionConfig) {
		c.ProgressTracker = tracker
	}
}
