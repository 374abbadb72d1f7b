package contact

import (
	"context"
	stderrors "errors"
	"fmt"
	"mime"
	"net"
	"net/url"
	"strings"
	"time"

	"qrcode-workers/internal/common/config"
	commonhttp "qrcode-workers/internal/common/http"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
)

// Fetcher retrieves remote photo bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher performs a single GET per photo. It never retries; every
// failure comes back as a *FetchError.
type HTTPFetcher struct {
	client   *commonhttp.Client
	timeout  time.Duration
	maxBytes int64
	logger   logger.Logger
}

func NewHTTPFetcher(cfg config.PhotoConfig, log logger.Logger) *HTTPFetcher {
	timeout := config.GetDuration(cfg.FetchTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &HTTPFetcher{
		client:   commonhttp.NewClient(timeout).WithUserAgent(cfg.UserAgent),
		timeout:  timeout,
		maxBytes: cfg.MaxFetchBytes,
		logger:   log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := f.fetch(ctx, rawURL)
	if err != nil {
		var fe *FetchError
		result := "error"
		if stderrors.As(err, &fe) && fe.Timeout {
			result = "timeout"
		}
		metrics.PhotoFetches.WithLabelValues(result).Inc()
		f.logger.Warn("Photo fetch failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		return nil, err
	}

	metrics.PhotoFetches.WithLabelValues("ok").Inc()
	f.logger.Debug("Photo fetched", map[string]interface{}{
		"url":   rawURL,
		"bytes": len(data),
	})
	return data, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(ctx, u.String())
	if err != nil {
		return nil, &FetchError{URL: rawURL, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !acceptedContentType(ct) {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected content type %q", ct)}
	}

	data, err := commonhttp.ReadLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Timeout: isTimeout(ctx, err), Err: err}
	}
	return data, nil
}

func acceptedContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") ||
		mediaType == "application/octet-stream" ||
		mediaType == "binary/octet-stream"
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
