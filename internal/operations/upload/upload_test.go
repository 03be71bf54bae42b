package upload

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/testutil"
)

func TestUploader_Upload(t *testing.T) {
	data := []byte("id,name\n1,foo\n")
	var captured *s3.PutObjectInput
	var body []byte

	mock := testutil.NewMockBuilder().
		WithPutObject(func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			captured = in
			b, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			body = b
			return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
		}).
		Build()

	progress := &testutil.MockProgressTracker{}
	result, err := New(mock).Upload(context.Background(), "bucket", "exp-15/1.data.csv",
		bytes.NewReader(data), int64(len(data)), &Config{
			ACL:                "private",
			ContentType:        "text/csv",
			ContentDisposition: "attachment; filename=data.csv;",
			Encrypt:            true,
			ProgressTracker:    progress,
		})
	require.NoError(t, err)

	assert.Equal(t, data, body)
	assert.Equal(t, int64(len(data)), result.Size)
	assert.Equal(t, `"etag"`, result.ETag)

	require.NotNil(t, captured)
	assert.Equal(t, "bucket", aws.ToString(captured.Bucket))
	assert.Equal(t, awstypes.ObjectCannedACLPrivate, captured.ACL)
	assert.Equal(t, "text/csv", aws.ToString(captured.ContentType))
	assert.Equal(t, "attachment; filename=data.csv;", aws.ToString(captured.ContentDisposition))
	assert.Equal(t, awstypes.ServerSideEncryptionAes256, captured.ServerSideEncryption)
	assert.Equal(t, int64(len(data)), aws.ToInt64(captured.ContentLength))

	assert.True(t, progress.UpdateCalled)
	assert.True(t, progress.CompleteCalled)
	assert.Equal(t, int64(len(data)), progress.BytesTransferred)
}

func TestUploader_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", testutil.AccessDeniedError(), errors.ErrAccessDenied},
		{"expired token", testutil.ExpiredTokenError(), errors.ErrAccessDenied},
		{"throttled", testutil.SlowDownError(), errors.ErrTransfer},
		{"entity too large", testutil.EntityTooLargeError(), errors.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockBuilder().
				WithPutObject(func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
					return nil, tt.err
				}).
				Build()

			progress := &testutil.MockProgressTracker{}
			_, err := New(mock).Upload(context.Background(), "bucket", "key",
				bytes.NewReader([]byte("x")), 1, &Config{ProgressTracker: progress})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, progress.ErrorCalled)

			var serr *errors.Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "bucket", serr.Bucket)
			assert.Equal(t, "key", serr.Key)
		})
	}
}

func TestProgressReadSeeker_Rewind(t *testing.T) {
	progress := &testutil.MockProgressTracker{}
	pr := &progressReadSeeker{ReadSeeker: bytes.NewReader([]byte("abcdef")), progressTracker: progress, total: 6}

	buf := make([]byte, 4)
	_, err := pr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), progress.BytesTransferred)

	_, err = pr.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, int64(6), progress.BytesTransferred)
}
