package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbcstorage/storage-go/errors"
)

type fileBody struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.HideBanner = true
	g := e.Group("/v2/storage")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(TokenHeader) != "secret" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Invalid access token", "code": "storage.tokenInvalid",
				})
			}
			return next(c)
		}
	})
	g.GET("/files/:id", func(c echo.Context) error {
		if c.Param("id") != "1" {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "File not found"})
		}
		return c.JSON(http.StatusOK, fileBody{ID: 1, Name: c.QueryParam("name")})
	})
	g.POST("/files/prepare", func(c echo.Context) error {
		return c.JSON(http.StatusOK, fileBody{ID: 2, Name: c.FormValue("name")})
	})
	g.DELETE("/files/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	g.GET("/broken", func(c echo.Context) error {
		return c.String(http.StatusOK, "{not json")
	})
	g.GET("/empty", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	g.GET("/boom", func(c echo.Context) error {
		return c.String(http.StatusBadGateway, "upstream")
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url, token string) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Token: token, UserAgent: "storage-go-test"})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", "https://connection.keboola.com", "https://connection.keboola.com/v2/storage/", false},
		{"trailing slash", "https://connection.keboola.com/", "https://connection.keboola.com/v2/storage/", false},
		{"relative", "connection.keboola.com", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{URL: tt.url, Token: "t"})
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestClient_Get(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "secret")
	ctx := context.Background()

	var out fileBody
	require.NoError(t, c.Get(ctx, "files/1", url.Values{"name": {"x.csv"}}, &out))
	assert.Equal(t, fileBody{ID: 1, Name: "x.csv"}, out)

	err := c.Get(ctx, "files/9", nil, &out)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "File not found")
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "wrong")

	err := c.Get(context.Background(), "files/1", nil, &fileBody{})
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "storage.tokenInvalid", se.Code)
}

func TestClient_PostForm(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "secret")

	var out fileBody
	err := c.PostForm(context.Background(), "files/prepare", url.Values{"name": {"upload.csv"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.ID)
	assert.Equal(t, "upload.csv", out.Name)
}

func TestClient_Delete(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "secret")
	assert.NoError(t, c.Delete(context.Background(), "files/1"))
}

func TestClient_InvalidResponses(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "secret")
	ctx := context.Background()

	assert.ErrorIs(t, c.Get(ctx, "broken", nil, &fileBody{}), errors.ErrInvalidResponse)
	assert.ErrorIs(t, c.Get(ctx, "empty", nil, &fileBody{}), errors.ErrInvalidResponse)

	err := c.Get(ctx, "boom", nil, &fileBody{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.False(t, errors.IsNotFound(err))
	assert.False(t, errors.IsUnauthorized(err))
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv.URL, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "files/1", nil, &fileBody{})
	assert.ErrorIs(t, err, context.Canceled)
}
