package storagetypes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/internal/s3api"
)

// ObjectStoreAPI is the subset of the S3 API the transfer code relies on.
type ObjectStoreAPI = s3api.S3API

// ObjectStoreFactory builds an object-store client bound to one set of
// delegated credentials. It is called once per transfer.
type ObjectStoreFactory func(ctx context.Context, creds Credentials, region string) (ObjectStoreAPI, error)

// Configuration types for functional options

// ClientConfig holds configuration for the Storage API client.
type ClientConfig struct {
	URL                string        `validate:"required,url"`
	Token              string        `validate:"required"`
	UserAgent          string        `validate:"omitempty,printascii"`
	Timeout            time.Duration `validate:"gte=0"`
	HTTPClient         *http.Client
	Logger             *slog.Logger
	Filesystem         fs.Filesystem
	ObjectStoreFactory ObjectStoreFactory
	Endpoint           string `validate:"omitempty,url"`
	ForcePathStyle     bool
	PollInterval       time.Duration `validate:"gt=0"`
	MaxPollInterval    time.Duration `validate:"gtefield=PollInterval"`
	MaxWait            time.Duration `validate:"gt=0"`
	TransferRetries    int           `validate:"gte=0,lte=10"`
	PartConcurrency    int           `validate:"gte=1,lte=64"`
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	Tags            []string `validate:"dive,required"`
	IsPublic        bool
	IsPermanent     bool
	IsEncrypted     bool
	Notify          bool
	Compress        bool
	FileName        string `validate:"omitempty,excludesall=/\\"`
	ProgressTracker ProgressTracker
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	Federation      bool
	ProgressTracker ProgressTracker
	PartConcurrency int    `validate:"gte=0,lte=64"`
	FileName        string `validate:"omitempty,excludesall=/\\"`
}

// DetailOptionConfig holds configuration for file detail requests.
type DetailOptionConfig struct {
	FederationToken bool
}

// ListOptionConfig holds configuration for file listing via functional options.
type ListOptionConfig struct {
	Tags    []string `validate:"dive,required"`
	Limit   int      `validate:"gte=0,lte=1000"`
	Offset  int      `validate:"gte=0"`
	Query   string
	SinceID int64 `validate:"gte=0"`
	MaxID   int64 `validate:"gte=0"`
	RunID   string
}

// ExportOptionConfig holds configuration for table exports via functional options.
type ExportOptionConfig struct {
	Limit         int    `validate:"gte=0"`
	Format        string `validate:"omitempty,oneof=rfc raw escaped"`
	Gzip          bool
	ChangedSince  string
	ChangedUntil  string
	Columns       []string `validate:"dive,required"`
	WhereColumn   string
	WhereOperator string   `validate:"omitempty,oneof=eq ne"`
	WhereValues   []string `validate:"required_with=WhereColumn"`
	IsIncremental bool
}

// LoadOptionConfig holds configuration for table loads via functional options.
type LoadOptionConfig struct {
	Incremental     bool
	Delimiter       string   `validate:"omitempty,len=1"`
	Enclosure       string   `validate:"omitempty,max=1"`
	EscapedBy       string   `validate:"omitempty,max=1"`
	Columns         []string `validate:"dive,required"`
	WithoutHeaders  bool
	ProgressTracker ProgressTracker
}

// Option is a functional option for configuring the Storage API client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring file uploads.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring file downloads.
	DownloadOption func(*DownloadOptionConfig)
	// DetailOption is a functional option for configuring file detail requests.
	DetailOption func(*DetailOptionConfig)
	// ListOption is a functional option for configuring file listing.
	ListOption func(*ListOptionConfig)
	// ExportOption is a functional option for configuring table exports.
	ExportOption func(*ExportOptionConfig)
	// LoadOption is a functional option for configuring table loads.
	LoadOption func(*LoadOptionConfig)
)
