package credentials

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/api"
	"github.com/kbcstorage/storage-go/internal/testutil"
)

func newResolver(t *testing.T, logger *slog.Logger) (*Resolver, *testutil.FakeStorageAPI) {
	t.Helper()
	fake := testutil.NewFakeStorageAPI(t, testutil.NewMemoryS3())
	client, err := api.New(api.Config{URL: fake.URL(), Token: testutil.FakeToken})
	require.NoError(t, err)
	return New(client, logger), fake
}

func prepare(t *testing.T, r *Resolver, tags ...string) int64 {
	t.Helper()
	file, err := r.Prepare(context.Background(), PrepareRequest{Name: "data.csv", SizeBytes: 10, Tags: tags})
	require.NoError(t, err)
	return file.ID
}

func TestResolver_Prepare(t *testing.T) {
	r, fake := newResolver(t, nil)

	file, err := r.Prepare(context.Background(), PrepareRequest{
		Name:        "data.csv",
		SizeBytes:   42,
		Tags:        []string{"a", "b"},
		IsEncrypted: true,
	})
	require.NoError(t, err)
	require.NotNil(t, file.UploadParams)
	assert.NotZero(t, file.ID)
	assert.Equal(t, "kbc-sapi-files", file.UploadParams.Bucket)
	assert.Equal(t, "private", file.UploadParams.ACL)
	assert.True(t, file.UploadParams.Credentials.Complete())

	reqs := fake.Requests()
	require.NotEmpty(t, reqs)
	form := reqs[len(reqs)-1].Form
	assert.Equal(t, "data.csv", form.Get("name"))
	assert.Equal(t, "42", form.Get("sizeBytes"))
	assert.Equal(t, "1", form.Get("isEncrypted"))
	assert.Equal(t, "1", form.Get("federationToken"))
	assert.Equal(t, []string{"a", "b"}, form["tags[]"])
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		federated bool
		deny      bool
		wantCreds bool
		wantErr   error
	}{
		{name: "federated", federated: true, wantCreds: true},
		{name: "plain", federated: false, wantCreds: false},
		{name: "federation denied", federated: true, deny: true, wantErr: errors.ErrUnauthorized},
		{name: "plain with federation denied", federated: false, deny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fake := newResolver(t, nil)
			id := prepare(t, r)
			fake.SetDenyFederation(tt.deny)

			file, err := r.Resolve(context.Background(), id, tt.federated)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, file.ID)
			if tt.wantCreds {
				require.NotNil(t, file.Credentials)
				assert.NotEmpty(t, file.Credentials.AccessKeyID)
				assert.NotEmpty(t, file.Credentials.SecretAccessKey)
				assert.NotEmpty(t, file.Credentials.SessionToken)
			} else {
				assert.Nil(t, file.Credentials)
			}
		})
	}
}

func TestResolver_ResolveNotFound(t *testing.T) {
	r, _ := newResolver(t, nil)

	_, err := r.Resolve(context.Background(), 987654, true)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	var serr *errors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, int64(987654), serr.FileID)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
}

func TestResolver_Unauthorized(t *testing.T) {
	fake := testutil.NewFakeStorageAPI(t, testutil.NewMemoryS3())
	client, err := api.New(api.Config{URL: fake.URL(), Token: "wrong"})
	require.NoError(t, err)

	_, err = New(client, nil).Resolve(context.Background(), 1, false)
	assert.True(t, errors.IsUnauthorized(err))

	var serr *errors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
}

func TestResolver_Delete(t *testing.T) {
	r, _ := newResolver(t, nil)
	id := prepare(t, r)
	ctx := context.Background()

	require.NoError(t, r.Delete(ctx, id))

	err := r.Delete(ctx, id)
	assert.True(t, errors.IsNotFound(err))

	_, err = r.Resolve(ctx, id, false)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolver_List(t *testing.T) {
	r, _ := newResolver(t, nil)
	a := prepare(t, r, "x", "y")
	b := prepare(t, r, "y")
	prepare(t, r, "z")

	files, err := r.List(context.Background(), ListFilter{Tags: []string{"y"}})
	require.NoError(t, err)
	ids := []int64{}
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []int64{b, a}, ids)

	files, err = r.List(context.Background(), ListFilter{Tags: []string{"y", "x"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, a, files[0].ID)
}

func TestResolver_LogsRedactedCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r, _ := newResolver(t, logger)
	id := prepare(t, r)

	file, err := r.Resolve(context.Background(), id, true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "resolved federated credentials")
	assert.NotContains(t, out, file.Credentials.SecretAccessKey)
	assert.NotContains(t, out, file.Credentials.SessionToken)
	assert.NotContains(t, out, file.Credentials.AccessKeyID)
	assert.Contains(t, out, file.Credentials.AccessKeyID[:4])
}
