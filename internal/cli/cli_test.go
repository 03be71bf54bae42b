package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/kbcstorage/storage-go"
	"github.com/kbcstorage/storage-go/fs/billy"
	"github.com/kbcstorage/storage-go/internal/testutil"
	"github.com/kbcstorage/storage-go/storagetypes"
)

type cliEnv struct {
	fake *testutil.FakeStorageAPI
	fs   *billy.FS
	opts []storagetypes.Option
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	store := testutil.NewMemoryS3()
	fake := testutil.NewFakeStorageAPI(t, store)
	fsys := billy.NewInMemoryFS()

	t.Setenv("KBC_API_URL", fake.URL())
	t.Setenv("KBC_TOKEN", testutil.FakeToken)
	t.Chdir(t.TempDir())

	return &cliEnv{
		fake: fake,
		fs:   fsys,
		opts: []storagetypes.Option{
			storage.WithFilesystem(fsys),
			storage.WithObjectStoreFactory(store.Factory()),
			storage.WithPollInterval(time.Millisecond),
			storage.WithMaxPollInterval(5 * time.Millisecond),
		},
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr, e.opts...)
	root.SetArgs(args)
	code := exitCode(&stderr, root.ExecuteContext(context.Background()))

	return strings.TrimSpace(stdout.String()), stderr.String(), code
}

func TestCLI_UploadDownload(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, env.fs.MkdirAll("/data", 0o755))
	require.NoError(t, env.fs.WriteFile("/data/report.csv", []byte("a,b\n1,2\n"), 0o644))

	out, stderr, code := env.run(t, "upload", "/data/report.csv", "--tag", "daily")
	require.Equal(t, ExitOK, code, stderr)
	id, err := strconv.ParseInt(out, 10, 64)
	require.NoError(t, err)
	assert.True(t, env.fake.HasFile(id))

	out, stderr, code = env.run(t, "download", out, "--dir", "/out", "--name", "copy.csv")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, "/out/copy.csv", out)

	data, err := env.fs.ReadFile("/out/copy.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestCLI_DetailAndList(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, env.fs.MkdirAll("/data", 0o755))
	require.NoError(t, env.fs.WriteFile("/data/a.txt", []byte("hello"), 0o644))

	idOut, stderr, code := env.run(t, "upload", "/data/a.txt", "--tag", "t1")
	require.Equal(t, ExitOK, code, stderr)

	out, stderr, code := env.run(t, "detail", idOut, "--federation-token")
	require.Equal(t, ExitOK, code, stderr)

	var detail map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &detail))
	assert.Equal(t, "a.txt", detail["name"])

	out, stderr, code = env.run(t, "list", "--tag", "t1")
	require.Equal(t, ExitOK, code, stderr)

	var files []map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &files))
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0]["name"])
}

func TestCLI_Delete(t *testing.T) {
	env := newCLIEnv(t)

	_, stderr, code := env.run(t, "delete", "424242")
	assert.Equal(t, ExitNotFound, code)
	assert.Contains(t, stderr, "NOT_FOUND")

	_, stderr, code = env.run(t, "delete", "424242", "--ignore-missing")
	assert.Equal(t, ExitOK, code, stderr)

	_, stderr, code = env.run(t, "delete", "not-a-number")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "INVALID_INPUT")
}

func TestCLI_LoadAndExport(t *testing.T) {
	env := newCLIEnv(t)
	env.fake.AddTable("in.c-main.t", []string{"id", "name"})
	require.NoError(t, env.fs.MkdirAll("/data", 0o755))
	require.NoError(t, env.fs.WriteFile("/data/rows.csv", []byte("id,name\n1,ping\n2,pong\n"), 0o644))

	_, stderr, code := env.run(t, "load", "in.c-main.t", "/data/rows.csv")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, [][]string{{"1", "ping"}, {"2", "pong"}}, env.fake.TableRows("in.c-main.t"))

	out, stderr, code := env.run(t, "export", "in.c-main.t",
		"--columns", "name", "--limit", "1", "--download", "/out")
	require.Equal(t, ExitOK, code, stderr)

	data, err := env.fs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\"ping\"\n", string(data))
}

func TestCLI_ExportMissingTable(t *testing.T) {
	env := newCLIEnv(t)

	_, stderr, code := env.run(t, "export", "in.c-main.missing")
	assert.Equal(t, ExitJob, code)
	assert.Contains(t, stderr, "JOB_FAILED")
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		file     string
		validate func(t *testing.T, cfg *Config, err error)
	}{
		{
			name: "defaults with environment credentials",
			env:  map[string]string{"KBC_API_URL": "https://env.example", "KBC_TOKEN": "env-token"},
			validate: func(t *testing.T, cfg *Config, err error) {
				require.NoError(t, err)
				assert.Equal(t, "https://env.example", cfg.URL)
				assert.Equal(t, "env-token", cfg.Token)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 3, cfg.TransferRetries)
				assert.Equal(t, 4, cfg.PartConcurrency)
				assert.Equal(t, 30*time.Minute, cfg.MaxWait)
			},
		},
		{
			name: "flags override environment",
			env:  map[string]string{"KBC_API_URL": "https://env.example", "KBC_TOKEN": "env-token"},
			args: []string{"--url", "https://flag.example", "--retries", "7"},
			validate: func(t *testing.T, cfg *Config, err error) {
				require.NoError(t, err)
				assert.Equal(t, "https://flag.example", cfg.URL)
				assert.Equal(t, "env-token", cfg.Token)
				assert.Equal(t, 7, cfg.TransferRetries)
			},
		},
		{
			name: "environment overrides config file",
			env:  map[string]string{"KBC_TOKEN": "env-token", "KBC_LOG_LEVEL": "debug"},
			file: "url: https://file.example\ntoken: file-token\nlog-level: warn\nconcurrency: 9\n",
			validate: func(t *testing.T, cfg *Config, err error) {
				require.NoError(t, err)
				assert.Equal(t, "https://file.example", cfg.URL)
				assert.Equal(t, "env-token", cfg.Token)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 9, cfg.PartConcurrency)
			},
		},
		{
			name: "missing token",
			env:  map[string]string{"KBC_API_URL": "https://env.example"},
			validate: func(t *testing.T, _ *Config, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "token")
			},
		},
		{
			name: "explicit config file must exist",
			env:  map[string]string{"KBC_API_URL": "https://env.example", "KBC_TOKEN": "x"},
			args: []string{"--config", "/nonexistent/kbcfiles.yaml"},
			validate: func(t *testing.T, _ *Config, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to load config")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"KBC_API_URL", "KBC_URL", "KBC_TOKEN", "KBC_LOG_LEVEL"} {
				t.Setenv(key, "")
				require.NoError(t, os.Unsetenv(key))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			t.Chdir(dir)
			if tt.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "kbcfiles.yaml"), []byte(tt.file), 0o600))
			}

			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			registerGlobalFlags(flags)
			require.NoError(t, flags.Parse(tt.args))

			cfg, err := loadConfig(flags)
			tt.validate(t, cfg, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")
	logger.Debug("hello", "file", 1)

	var entry map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
}
