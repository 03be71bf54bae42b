package manifest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/objectstore"
	"github.com/kbcstorage/storage-go/internal/testutil"
	"github.com/kbcstorage/storage-go/storagetypes"
)

func TestPrefix(t *testing.T) {
	assert.Equal(t, "exp-2/1.csv", Prefix("exp-2/1.csvmanifest"))
	assert.Equal(t, "exp-2/1.csv", Prefix("exp-2/1.csv"))
}

func TestResolveParts(t *testing.T) {
	mem := testutil.NewMemoryS3()
	mem.PageSize = 2
	mem.Put("b", "exp-2/1.csvmanifest", []byte(`{"entries":[]}`))
	for _, i := range []int{2, 0, 1} {
		mem.Put("b", fmt.Sprintf("exp-2/1.csv%04d_part_00", i), []byte{'a' + byte(i)})
	}
	mem.Put("b", "exp-2/10.csv0000_part_00", []byte("other file"))
	store := objectstore.NewWithClient(mem, nil)

	loc := storagetypes.Locator{Kind: storagetypes.LocatorSliced, Bucket: "b", Key: "exp-2/1.csvmanifest"}
	parts, err := ResolveParts(context.Background(), store, 1, loc)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for i, p := range parts {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, fmt.Sprintf("exp-2/1.csv%04d_part_00", i), p.Key)
		assert.Equal(t, "b", p.Bucket)
	}
	assert.Equal(t, int64(3), TotalSize(parts))
}

func TestResolveParts_Corrupt(t *testing.T) {
	mem := testutil.NewMemoryS3()
	mem.Put("b", "exp-2/1.csvmanifest", []byte(`{"entries":[]}`))
	store := objectstore.NewWithClient(mem, nil)

	loc := storagetypes.Locator{Kind: storagetypes.LocatorSliced, Bucket: "b", Key: "exp-2/1.csvmanifest"}
	_, err := ResolveParts(context.Background(), store, 1, loc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCorruptManifest)
	assert.False(t, errors.IsRetryable(err))
}

func TestResolveParts_Errors(t *testing.T) {
	mem := testutil.NewMemoryS3()
	store := objectstore.NewWithClient(mem, nil)
	ctx := context.Background()

	_, err := ResolveParts(ctx, store, 1, storagetypes.Locator{Kind: storagetypes.LocatorDirect, Bucket: "b", Key: "k"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	mem.DenyAccess(true)
	_, err = ResolveParts(ctx, store, 1, storagetypes.Locator{Kind: storagetypes.LocatorSliced, Bucket: "b", Key: "kmanifest"})
	assert.ErrorIs(t, err, errors.ErrAccessDenied)
}
