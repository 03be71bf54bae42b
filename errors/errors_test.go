package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "operation only",
			err:  NewError("list", ErrInvalidInput),
			want: "storage.list: storage: invalid input",
		},
		{
			name: "file context",
			err:  NewFileError("detail", 42, ErrNotFound).WithStatus(404),
			want: "storage.detail file 42 (status 404): storage: not found",
		},
		{
			name: "job context",
			err:  NewJobError("export", 7, ErrJobTimeout),
			want: "storage.export job 7: storage: job timeout",
		},
		{
			name: "object context",
			err:  NewObjectError("get", "bucket", "exp/1.csv", ErrTransfer),
			want: "storage.get s3://bucket/exp/1.csv: storage: transfer error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := NewFileError("download", 1, ErrCorruptManifest).WithMessage("no parts under prefix")
	wrapped := fmt.Errorf("outer: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCorruptManifest))
	assert.Contains(t, wrapped.Error(), "no parts under prefix")

	var target *Error
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, int64(1), target.FileID)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewFileError("delete", 3, ErrNotFound)))
	assert.False(t, IsNotFound(NewFileError("delete", 3, ErrUnauthorized)))
	assert.True(t, IsUnauthorized(NewError("detail", ErrUnauthorized)))
	assert.True(t, IsAccessDenied(NewObjectError("put", "b", "k", ErrAccessDenied)))
	assert.True(t, IsJobTimeout(NewJobError("poll", 1, ErrJobTimeout)))
	assert.True(t, IsRetryable(NewObjectError("get", "b", "k", ErrTransfer)))
	assert.False(t, IsRetryable(NewObjectError("get", "b", "k", ErrAccessDenied)))
	assert.False(t, IsRetryable(ErrCorruptManifest))
}

func TestJobFailure(t *testing.T) {
	failure := &JobFailure{JobID: 9, Message: "Table not found", Code: "storage.tables.notFound"}
	err := NewJobError("export", 9, failure)

	assert.True(t, IsJobFailed(err))
	assert.False(t, IsJobTimeout(err))
	assert.Contains(t, err.Error(), "Table not found")

	var jf *JobFailure
	assert.True(t, errors.As(err, &jf))
	assert.Equal(t, "Table not found", jf.Message)
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrorCode(""), Code(nil))
	assert.Equal(t, CodeNotFound, Code(NewFileError("detail", 1, ErrNotFound)))
	assert.Equal(t, CodeJobFailed, Code(&JobFailure{JobID: 1, Message: "boom"}))
	assert.Equal(t, CodeCorruptManifest, Code(fmt.Errorf("x: %w", ErrCorruptManifest)))
	assert.Equal(t, CodeUnknown, Code(errors.New("something else")))
}
