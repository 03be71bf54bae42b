package storage

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/fs"
	"github.com/kbcstorage/storage-go/fs/billy"
	"github.com/kbcstorage/storage-go/internal/api"
	"github.com/kbcstorage/storage-go/internal/credentials"
	"github.com/kbcstorage/storage-go/internal/jobs"
	"github.com/kbcstorage/storage-go/internal/objectstore"
	"github.com/kbcstorage/storage-go/internal/validation"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Defaults applied by New.
const (
	DefaultUserAgent       = "storage-go"
	DefaultTransferRetries = 3
	DefaultPartConcurrency = 4
)

// Client is a Storage API client. It is safe for concurrent use; transfers
// for different files share no mutable state.
type Client struct {
	cfg      storagetypes.ClientConfig
	api      *api.Client
	resolver *credentials.Resolver
	poller   *jobs.Poller
	fs       fs.Filesystem
	factory  storagetypes.ObjectStoreFactory
	logger   *slog.Logger

	// transferHTTP fetches signed URLs. It has no request timeout; the
	// caller's context bounds the transfer.
	transferHTTP *http.Client

	// transferBackoff is the first delay between transfer retries.
	transferBackoff time.Duration
}

// New creates a client for the Storage API stack rooted at url.
//
// Example:
//
//	client, err := storage.New("https://connection.keboola.com",
//	    storage.WithToken(token),
//	    storage.WithMaxWait(10*time.Minute),
//	)
func New(url string, opts ...storagetypes.Option) (*Client, error) {
	cfg := storagetypes.ClientConfig{
		URL:             url,
		UserAgent:       DefaultUserAgent,
		PollInterval:    jobs.DefaultInterval,
		MaxPollInterval: jobs.DefaultMaxInterval,
		MaxWait:         jobs.DefaultMaxWait,
		TransferRetries: DefaultTransferRetries,
		PartConcurrency: DefaultPartConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validation.Struct("new", &cfg); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	apiClient, err := api.New(api.Config{
		URL:        cfg.URL,
		Token:      cfg.Token,
		UserAgent:  cfg.UserAgent,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, errors.NewError("new", err)
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewBaseOSFS()
	}

	factory := cfg.ObjectStoreFactory
	if factory == nil {
		factory = objectstore.NewFactory(objectstore.FactoryOptions{
			Endpoint:       cfg.Endpoint,
			ForcePathStyle: cfg.ForcePathStyle,
		})
	}

	return &Client{
		cfg:             cfg,
		api:             apiClient,
		transferHTTP:    transferClient(httpClient),
		resolver:        credentials.New(apiClient, logger),
		poller:          jobs.New(apiClient, logger),
		fs:              filesystem,
		factory:         factory,
		logger:          logger,
		transferBackoff: 200 * time.Millisecond,
	}, nil
}

// transferClient derives the signed-URL client from the API client, keeping
// its transport and redirect policy but dropping the whole-request timeout.
func transferClient(apiClient *http.Client) *http.Client {
	return &http.Client{
		Transport:     apiClient.Transport,
		CheckRedirect: apiClient.CheckRedirect,
		Jar:           apiClient.Jar,
	}
}

// Files returns the file operations of the client.
func (c *Client) Files() *Files {
	return &Files{c: c}
}

// Tables returns the table operations of the client.
func (c *Client) Tables() *Tables {
	return &Tables{c: c}
}

// APIURL returns the resolved Storage API root.
func (c *Client) APIURL() string {
	return c.api.BaseURL()
}

func (c *Client) pollConfig() jobs.Config {
	return jobs.Config{
		Interval:    c.cfg.PollInterval,
		MaxInterval: c.cfg.MaxPollInterval,
		MaxWait:     c.cfg.MaxWait,
	}
}
