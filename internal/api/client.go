package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/kbcstorage/storage-go/errors"
)

const (
	// TokenHeader carries the Storage API token.
	TokenHeader = "X-StorageApi-Token"
	// RequestIDHeader carries a client generated id for log correlation.
	RequestIDHeader = "X-Request-Id"

	apiPrefix = "v2/storage/"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Config configures a Client.
type Config struct {
	URL        string
	Token      string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client performs authenticated requests against the Storage API.
type Client struct {
	base      *url.URL
	token     string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// New creates a Client rooted at <cfg.URL>/v2/storage/.
func New(cfg Config) (*Client, error) {
	root, err := url.Parse(strings.TrimRight(cfg.URL, "/") + "/")
	if err != nil {
		return nil, errors.NewError("api.new", errors.ErrInvalidInput).WithMessage(err.Error())
	}
	if root.Scheme == "" || root.Host == "" {
		return nil, errors.NewError("api.new", errors.ErrInvalidInput).
			WithMessage("url must be absolute: " + cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		base:      root.ResolveReference(&url.URL{Path: apiPrefix}),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get sends a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// PostForm sends a form-encoded POST request and decodes the response into out.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, form, out)
}

// Delete sends a DELETE request. The response body is ignored.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do sends a request to path relative to the API root. A nil out discards
// the response body.
func (c *Client) Do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	target := c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(path, "/")})
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "storage api request failed",
			"method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.DebugContext(ctx, "storage api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.NewError("api.decode", errors.ErrInvalidResponse).
			WithStatus(resp.StatusCode).
			WithMessage(fmt.Sprintf("%s %s returned an empty body", method, path))
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return errors.NewError("api.decode", errors.ErrInvalidResponse).
			WithStatus(resp.StatusCode).
			WithMessage(fmt.Sprintf("%s %s: %v", method, path, err))
	}

	return nil
}
