//go:build integration

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/manifest"
	"github.com/kbcstorage/storage-go/internal/testutil"
	"github.com/kbcstorage/storage-go/storagetypes"
)

func TestIntegration_LocalStack(t *testing.T) {
	ls := testutil.StartLocalStack(t)
	bucket := "kbc-it-" + uuid.NewString()[:8]
	ls.CreateBucket(t, bucket)

	ctx := context.Background()
	factory := NewFactory(FactoryOptions{Endpoint: ls.Endpoint, ForcePathStyle: true})
	store, err := Open(ctx, factory, testutil.LocalStackCredentials, testutil.LocalStackRegion, nil)
	require.NoError(t, err)

	t.Run("put and download", func(t *testing.T) {
		data := []byte("id,name\n1,ping\n")
		err := store.Put(ctx, bucket, "exp-2/1.csv", bytes.NewReader(data), int64(len(data)), PutOptions{
			ContentType:        "text/csv",
			ContentDisposition: "attachment; filename=1.csv;",
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := store.Download(ctx, bucket, "exp-2/1.csv", &buf, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, data, buf.Bytes())
	})

	t.Run("missing object", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := store.Download(ctx, bucket, "exp-2/missing.csv", &buf, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrObjectNotFound)
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("sliced parts in listing order", func(t *testing.T) {
		prefix := "exp-2/sliced/"
		var want []string
		for i := range 3 {
			key := fmt.Sprintf("%s%04d_part_00", prefix, i)
			body := []byte(fmt.Sprintf("part %d\n", i))
			require.NoError(t, store.Put(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), PutOptions{}))
			want = append(want, key)
		}
		manifestKey := prefix + manifest.Suffix
		require.NoError(t, store.Put(ctx, bucket, manifestKey, bytes.NewReader([]byte(`{"entries":[]}`)), 14, PutOptions{}))

		parts, err := manifest.ResolveParts(ctx, store, 1, storagetypes.Locator{
			Kind:   storagetypes.LocatorSliced,
			Bucket: bucket,
			Key:    manifestKey,
		})
		require.NoError(t, err)

		var got []string
		for _, p := range parts {
			got = append(got, p.Key)
		}
		assert.Equal(t, want, got)
	})

	t.Run("incomplete credentials", func(t *testing.T) {
		_, err := Open(ctx, factory, storagetypes.Credentials{AccessKeyID: "test"}, "", nil)
		assert.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}
