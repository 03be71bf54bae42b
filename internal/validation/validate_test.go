package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/storagetypes"
)

func TestValidateFileID(t *testing.T) {
	assert.NoError(t, ValidateFileID(1))
	assert.ErrorIs(t, ValidateFileID(0), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateFileID(-5), errors.ErrInvalidInput)
}

func TestValidateTableID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{"valid", "in.c-main.orders", false},
		{"valid_with_underscores", "out.c-api_tests.some-table", false},
		{"empty", "", true},
		{"two_parts", "in.c-main", true},
		{"slash", "in.c-main/orders.x", true},
		{"space", "in.c-main.my table", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableID(tt.id)
			if tt.wantError {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags(nil))
	assert.NoError(t, ValidateTags([]string{"py-test", "export"}))
	assert.ErrorIs(t, ValidateTags([]string{"ok", " "}), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateTags([]string{"bad\x00tag"}), errors.ErrInvalidInput)
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantError bool
		errMsg    string
	}{
		{"valid", "data.csv", false, ""},
		{"valid_gz", "in.c-main.orders.csv.gz", false, ""},
		{"empty", "", true, "file name cannot be empty"},
		{"dot", ".", true, "path separators"},
		{"dotdot", "..", true, "path separators"},
		{"traversal", "../etc/passwd", true, "path separators"},
		{"backslash", `..\evil`, true, "path separators"},
		{"too_long", strings.Repeat("a", 256), true, "cannot exceed 255"},
		{"control", "a\nb", true, "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.file)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateACL(t *testing.T) {
	assert.NoError(t, ValidateACL(""))
	assert.NoError(t, ValidateACL("private"))
	assert.NoError(t, ValidateACL("bucket-owner-full-control"))
	assert.ErrorIs(t, ValidateACL("everyone"), errors.ErrInvalidResponse)
}

func TestStruct(t *testing.T) {
	t.Run("valid export options", func(t *testing.T) {
		cfg := storagetypes.ExportOptionConfig{Format: "rfc", Limit: 10}
		assert.NoError(t, Struct("export", &cfg))
	})

	t.Run("invalid export format", func(t *testing.T) {
		cfg := storagetypes.ExportOptionConfig{Format: "xml"}
		err := Struct("export", &cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "Format")
	})

	t.Run("where values required with column", func(t *testing.T) {
		cfg := storagetypes.ExportOptionConfig{WhereColumn: "id"}
		assert.ErrorIs(t, Struct("export", &cfg), errors.ErrInvalidInput)
	})

	t.Run("client config", func(t *testing.T) {
		cfg := storagetypes.ClientConfig{
			URL:             "https://connection.keboola.com",
			Token:           "token",
			PollInterval:    time.Second,
			MaxPollInterval: 20 * time.Second,
			MaxWait:         time.Minute,
			PartConcurrency: 4,
		}
		assert.NoError(t, Struct("new", &cfg))

		cfg.MaxPollInterval = time.Millisecond
		assert.ErrorIs(t, Struct("new", &cfg), errors.ErrInvalidInput)
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := storagetypes.ClientConfig{
			URL:             "https://connection.keboola.com",
			PollInterval:    time.Second,
			MaxPollInterval: time.Second,
			MaxWait:         time.Second,
			PartConcurrency: 1,
		}
		err := Struct("new", &cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Token")
	})
}
