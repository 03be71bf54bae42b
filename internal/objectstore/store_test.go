package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/testutil"
	"github.com/kbcstorage/storage-go/storagetypes"
)

var creds = storagetypes.Credentials{
	AccessKeyID:     "ASIAEXAMPLE",
	SecretAccessKey: "secret",
	SessionToken:    "token",
}

func TestStore_RoundTrip(t *testing.T) {
	mem := testutil.NewMemoryS3()
	ctx := context.Background()

	store, err := Open(ctx, mem.Factory(), creds, "eu-central-1", nil)
	require.NoError(t, err)

	data := []byte("a,b\n1,2\n")
	err = store.Put(ctx, "bucket", "exp/1.csv", bytes.NewReader(data), int64(len(data)), PutOptions{
		ACL:                "private",
		ContentType:        "text/csv",
		ContentDisposition: "attachment; filename=1.csv;",
		Encrypt:            true,
	})
	require.NoError(t, err)

	obj, ok := mem.Object("bucket", "exp/1.csv")
	require.True(t, ok)
	assert.Equal(t, "attachment; filename=1.csv;", obj.ContentDisposition)
	assert.Equal(t, "AES256", string(obj.ServerSideEncryption))

	body, size, err := store.Get(ctx, "bucket", "exp/1.csv")
	require.NoError(t, err)
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), size)

	var buf bytes.Buffer
	n, err := store.Download(ctx, "bucket", "exp/1.csv", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	objects, err := store.List(ctx, "bucket", "exp/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "exp/1.csv", objects[0].Key)

	issued := mem.IssuedCredentials()
	require.Len(t, issued, 1)
	assert.Equal(t, creds, issued[0])
}

func TestStore_Classification(t *testing.T) {
	mem := testutil.NewMemoryS3()
	ctx := context.Background()
	store, err := Open(ctx, mem.Factory(), creds, "", nil)
	require.NoError(t, err)

	_, _, err = store.Get(ctx, "bucket", "missing")
	assert.ErrorIs(t, err, errors.ErrObjectNotFound)

	mem.DenyAccess(true)
	_, err = store.List(ctx, "bucket", "")
	assert.ErrorIs(t, err, errors.ErrAccessDenied)
	assert.False(t, errors.IsRetryable(err))
}

func TestOpen_IncompleteCredentials(t *testing.T) {
	_, err := Open(context.Background(), NewFactory(FactoryOptions{}), storagetypes.Credentials{AccessKeyID: "x"}, "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestNewFactory_BuildsClient(t *testing.T) {
	factory := NewFactory(FactoryOptions{Endpoint: "http://127.0.0.1:9000", ForcePathStyle: true})
	client, err := factory(context.Background(), creds, "")
	require.NoError(t, err)
	assert.NotNil(t, client)
}
