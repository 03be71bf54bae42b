package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/fs/billy"
	"github.com/kbcstorage/storage-go/internal/testutil"
	"github.com/kbcstorage/storage-go/storagetypes"
)

type testEnv struct {
	client *Client
	fake   *testutil.FakeStorageAPI
	store  *testutil.MemoryS3
	fs     *billy.FS
}

func newTestEnv(t *testing.T, opts ...storagetypes.Option) *testEnv {
	t.Helper()

	store := testutil.NewMemoryS3()
	fake := testutil.NewFakeStorageAPI(t, store)
	fsys := billy.NewInMemoryFS()

	base := []storagetypes.Option{
		WithToken(testutil.FakeToken),
		WithFilesystem(fsys),
		WithObjectStoreFactory(store.Factory()),
		WithPollInterval(time.Millisecond),
		WithMaxPollInterval(5 * time.Millisecond),
		WithMaxWait(5 * time.Second),
	}
	client, err := New(fake.URL(), append(base, opts...)...)
	require.NoError(t, err)
	client.transferBackoff = time.Millisecond

	return &testEnv{client: client, fake: fake, store: store, fs: fsys}
}

func (e *testEnv) writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, e.fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, e.fs.WriteFile(path, data, 0o644))
}

func (e *testEnv) readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := e.fs.ReadFile(path)
	require.NoError(t, err)
	return data
}

func (e *testEnv) dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	infos, err := e.fs.ReadDir(dir)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		opts    []storagetypes.Option
		wantErr bool
	}{
		{
			name: "defaults",
			url:  "https://connection.keboola.com",
			opts: []storagetypes.Option{WithToken("token")},
		},
		{
			name: "all options",
			url:  "https://connection.keboola.com/",
			opts: []storagetypes.Option{
				WithToken("token"),
				WithTimeout(time.Minute),
				WithLogger(slog.Default()),
				WithUserAgent("kbcfiles/1.0"),
				WithEndpoint("http://localhost:9000", true),
				WithPollInterval(2 * time.Second),
				WithMaxPollInterval(time.Minute),
				WithMaxWait(time.Hour),
				WithTransferRetries(5),
				WithPartConcurrency(8),
			},
		},
		{
			name:    "missing token",
			url:     "https://connection.keboola.com",
			wantErr: true,
		},
		{
			name:    "relative url",
			url:     "connection.keboola.com",
			opts:    []storagetypes.Option{WithToken("token")},
			wantErr: true,
		},
		{
			name: "max poll interval below poll interval",
			url:  "https://connection.keboola.com",
			opts: []storagetypes.Option{
				WithToken("token"),
				WithPollInterval(time.Minute),
				WithMaxPollInterval(time.Second),
			},
			wantErr: true,
		},
		{
			name:    "zero part concurrency",
			url:     "https://connection.keboola.com",
			opts:    []storagetypes.Option{WithToken("token"), WithPartConcurrency(0)},
			wantErr: true,
		},
		{
			name:    "too many retries",
			url:     "https://connection.keboola.com",
			opts:    []storagetypes.Option{WithToken("token"), WithTransferRetries(11)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.url, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, errors.ErrInvalidInput), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://connection.keboola.com/v2/storage/", client.APIURL())
			assert.NotNil(t, client.Files())
			assert.NotNil(t, client.Tables())
		})
	}
}

func TestNew_TransferClient(t *testing.T) {
	transport := &http.Transport{}
	tests := []struct {
		name          string
		opts          []storagetypes.Option
		wantTransport http.RoundTripper
	}{
		{
			name: "default client with timeout",
			opts: []storagetypes.Option{WithTimeout(time.Second)},
		},
		{
			name:          "custom client",
			opts:          []storagetypes.Option{WithHTTPClient(&http.Client{Timeout: time.Second, Transport: transport})},
			wantTransport: transport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New("https://connection.keboola.com", append([]storagetypes.Option{WithToken("token")}, tt.opts...)...)
			require.NoError(t, err)
			require.NotNil(t, client.transferHTTP)
			assert.Zero(t, client.transferHTTP.Timeout)
			assert.Equal(t, tt.wantTransport, client.transferHTTP.Transport)
		})
	}
}

func TestFiles_SignedURLDownloadOutlivesAPITimeout(t *testing.T) {
	env := newTestEnv(t, WithTimeout(time.Second))
	ctx := context.Background()
	env.writeFile(t, "/src/slow.txt", []byte("slow signed url body"))

	fileID, err := env.client.Files().Upload(ctx, "/src/slow.txt")
	require.NoError(t, err)

	env.client.transferHTTP.Transport = slowTransport{delay: 1500 * time.Millisecond}

	path, err := env.client.Files().Download(ctx, fileID, "/downloads", WithFederation(false))
	require.NoError(t, err)
	assert.Equal(t, []byte("slow signed url body"), env.readFile(t, path))
}

// slowTransport delays every round trip past a short API timeout.
type slowTransport struct {
	delay time.Duration
}

func (s slowTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case <-time.After(s.delay):
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestNew_Defaults(t *testing.T) {
	client, err := New("https://connection.keboola.com", WithToken("token"))
	require.NoError(t, err)

	assert.Equal(t, DefaultTransferRetries, client.cfg.TransferRetries)
	assert.Equal(t, DefaultPartConcurrency, client.cfg.PartConcurrency)
	assert.Equal(t, DefaultUserAgent, client.cfg.UserAgent)
	assert.Equal(t, time.Second, client.cfg.PollInterval)
	assert.Equal(t, 20*time.Second, client.cfg.MaxPollInterval)
	assert.Equal(t, 30*time.Minute, client.cfg.MaxWait)
	assert.NotNil(t, client.fs)
	assert.NotNil(t, client.factory)
	assert.NotNil(t, client.logger)
}
