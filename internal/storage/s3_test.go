package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "screenshots",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	ctx := context.Background()

	t.Run("configured", func(t *testing.T) {
		storage, err := NewS3Storage(ctx, t.TempDir(), testS3Config("http://localhost:9000/"))
		require.NoError(t, err)
		assert.Equal(t, "screenshots", storage.bucket)
		assert.Equal(t, "us-east-1", storage.region)
		assert.Equal(t, "http://localhost:9000", storage.endpoint)
	})

	t.Run("requires a bucket", func(t *testing.T) {
		cfg := testS3Config("")
		cfg.Bucket = ""
		_, err := NewS3Storage(ctx, t.TempDir(), cfg)
		assert.ErrorIs(t, err, ErrS3NotConfigured)
	})
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	ctx := context.Background()
	storage, err := NewS3Storage(ctx, t.TempDir(), testS3Config("http://localhost:9000"))
	require.NoError(t, err)

	p, err := storage.ReserveTemp(ctx, "temp_video", ".mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, storage.TempDir()))
	assert.NoError(t, storage.CleanupTemp(ctx, []string{p}))
}

func TestS3Storage_objectURL(t *testing.T) {
	s := &S3Storage{bucket: "shots", region: "eu-west-1"}
	assert.Equal(t, "https://shots.s3.eu-west-1.amazonaws.com/job-1/a.png", s.objectURL("job-1/a.png"))

	s.endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/shots/job-1/a.png", s.objectURL("job-1/a.png"))
}

func TestS3Storage_UploadToS3_MockServer(t *testing.T) {
	var (
		gotPath        string
		gotBody        []byte
		gotContentType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	storage, err := NewS3Storage(ctx, t.TempDir(), testS3Config(server.URL))
	require.NoError(t, err)

	url, err := storage.UploadToS3(ctx, "job-1/screenshot_000_00-00-05.png", bytes.NewReader([]byte("png bytes")))
	require.NoError(t, err)

	assert.Equal(t, "/screenshots/job-1/screenshot_000_00-00-05.png", gotPath)
	assert.Equal(t, "image/png", gotContentType)
	assert.Contains(t, string(gotBody), "png bytes")
	assert.Equal(t, server.URL+"/screenshots/job-1/screenshot_000_00-00-05.png", url)
}

func TestS3Storage_UploadToS3_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	ctx := context.Background()
	storage, err := NewS3Storage(ctx, t.TempDir(), testS3Config(server.URL))
	require.NoError(t, err)

	_, err = storage.UploadToS3(ctx, "job-1/a.png", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}
