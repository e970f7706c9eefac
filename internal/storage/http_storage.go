package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FrameFetcher retrieves encoded frame bytes from a remote location
type FrameFetcher interface {
	FetchFrame(ctx context.Context, location string) ([]byte, error)
}

const maxFetchAttempts = 3

// DefaultMaxFrameBytes bounds a single fetched frame
const DefaultMaxFrameBytes = 32 << 20

// HTTPFrameFetcher implements FrameFetcher over plain HTTP(S) with retries
type HTTPFrameFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  func(attempt int) time.Duration
}

// HTTPOption customises an HTTPFrameFetcher
type HTTPOption func(*HTTPFrameFetcher)

// WithBackoff replaces the delay between attempts
func WithBackoff(backoff func(attempt int) time.Duration) HTTPOption {
	return func(h *HTTPFrameFetcher) { h.backoff = backoff }
}

// WithMaxBytes caps the response body size
func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPFrameFetcher) { h.maxBytes = n }
}

// NewHTTPFrameFetcher creates an HTTP frame fetcher with the given overall timeout
func NewHTTPFrameFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPFrameFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Connection pooling sized for single frame downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPFrameFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: DefaultMaxFrameBytes,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchFrame downloads the frame at location. Network errors and 5xx responses
// are retried up to three attempts; 4xx responses fail immediately.
func (h *HTTPFrameFetcher) FetchFrame(ctx context.Context, location string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/bmp, image/tiff, */*")
		req.Header.Set("User-Agent", "Rivermind/1.0")

		data, retry, err := h.do(req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}

		// Sleep before next retry (not on last attempt)
		if attempt < maxFetchAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled: %w", ctx.Err())
			case <-time.After(h.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch frame after %d attempts: %w", maxFetchAttempts, lastErr)
}

// do performs one attempt and reports whether a failure is worth retrying
func (h *HTTPFrameFetcher) do(req *http.Request) ([]byte, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 4xx client errors are non-retryable
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, false, fmt.Errorf("frame exceeds %d bytes", h.maxBytes)
	}
	if len(data) == 0 {
		return nil, false, fmt.Errorf("empty response body")
	}
	return data, false, nil
}
