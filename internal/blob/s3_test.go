package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateAWSEnv keeps the SDK away from the developer's real AWS setup.
func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

type recordedPut struct {
	path string
	body string
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedPut) {
	t.Helper()
	var mu sync.Mutex
	var puts []recordedPut
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, recordedPut{path: r.URL.Path, body: string(body)})
			mu.Unlock()
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &puts
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(S3Config{})
	require.Error(t, err)
}

func TestNewS3UploaderDefaults(t *testing.T) {
	u, err := NewS3Uploader(S3Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", u.cfg.Region)
	assert.Equal(t, time.Hour, u.cfg.PresignTTL)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "plot.png", ObjectKey("/tmp/abc/plot.png"))
}

func TestUploadReturnsPresignedURL(t *testing.T) {
	isolateAWSEnv(t)
	server, puts := newFakeS3(t, http.StatusOK)

	u, err := NewS3Uploader(S3Config{
		Bucket:          "test-bucket",
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	path := writeTempFile(t, "plot.png", "png-bytes")
	url, err := u.Upload(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, *puts, 1)
	assert.Equal(t, "/test-bucket/plot.png", (*puts)[0].path)
	assert.Contains(t, (*puts)[0].body, "png-bytes")

	assert.True(t, strings.HasPrefix(url, server.URL+"/test-bucket/plot.png?"), "url: %s", url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestUploadPutFailure(t *testing.T) {
	isolateAWSEnv(t)
	server, _ := newFakeS3(t, http.StatusForbidden)

	u, err := NewS3Uploader(S3Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	path := writeTempFile(t, "plot.png", "png-bytes")
	_, err = u.Upload(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object test-bucket/plot.png")
}

func TestUploadMissingFile(t *testing.T) {
	isolateAWSEnv(t)
	u, err := NewS3Uploader(S3Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
