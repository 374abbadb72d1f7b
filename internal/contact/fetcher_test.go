package contact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcode-workers/internal/common/config"
	apperrors "qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
)

func createTestFetcher(t *testing.T, timeoutMs int, maxBytes int64) *HTTPFetcher {
	t.Helper()
	return NewHTTPFetcher(config.PhotoConfig{
		FetchTimeout:  timeoutMs,
		MaxFetchBytes: maxBytes,
		UserAgent:     "qrcode-workers-test",
	}, logger.NewTestLogger(t))
}

func TestHTTPFetcher_Success(t *testing.T) {
	img := createTestImage(t, 20, 20)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "qrcode-workers-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer server.Close()

	data, err := createTestFetcher(t, 2000, 0).Fetch(context.Background(), server.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFetcher_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		maxBytes    int64
		wantStatus  int
		wantTimeout bool
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "server error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "html content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte("<html></html>"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "body over limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				_, _ = w.Write(make([]byte, 64))
			},
			maxBytes:   16,
			wantStatus: http.StatusOK,
		},
		{
			name: "slow server times out",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			data, err := createTestFetcher(t, 100, tt.maxBytes).Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.Nil(t, data)
			assert.Equal(t, int32(1), hits.Load())

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantStatus, fe.StatusCode)
			assert.Equal(t, tt.wantTimeout, fe.Timeout)

			code := apperrors.FromError(err).Code
			if tt.wantTimeout {
				assert.Equal(t, apperrors.ErrCodePhotoFetchTimeout, code)
			} else {
				assert.Equal(t, apperrors.ErrCodePhotoFetchFailed, code)
			}
		})
	}
}

func TestHTTPFetcher_RejectsNonHTTPScheme(t *testing.T) {
	for _, raw := range []string{"file:///etc/passwd", "ftp://example.com/a.png", "::not a url"} {
		_, err := createTestFetcher(t, 1000, 0).Fetch(context.Background(), raw)
		var fe *FetchError
		assert.True(t, errors.As(err, &fe), raw)
	}
}

func TestHTTPFetcher_OctetStreamAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{1, 2, 3})
	}))
	defer server.Close()

	data, err := createTestFetcher(t, 1000, 0).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestFetchError_Messages(t *testing.T) {
	assert.Contains(t, (&FetchError{URL: "u", Timeout: true}).Error(), "timed out")
	assert.Contains(t, (&FetchError{URL: "u", StatusCode: 500}).Error(), "500")
	assert.Contains(t, (&FetchError{URL: "u", Err: errors.New("boom")}).Error(), "boom")
}
