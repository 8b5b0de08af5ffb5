package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ProgressFunc is called periodically to report download progress.
// totalBytes is 0 when the server does not announce a length.
type ProgressFunc func(bytesDownloaded, totalBytes int64)

// ErrStalled is returned when the response body stops delivering data for
// longer than the client's idle timeout.
var ErrStalled = errors.New("transfer stalled")

// DownloadOptions contains configuration for a single download.
type DownloadOptions struct {
	URL        string
	DestPath   string
	RetryCount int // 0 defaults to 1 (a single attempt)
	OnProgress ProgressFunc
}

// DownloadResult contains the result of a successful download.
type DownloadResult struct {
	Path     string
	Size     int64
	SHA256   string
	Attempts int
	Duration time.Duration
}

// Client performs HTTP downloads with optional retries.
// Content is written to a temporary sibling of the destination and renamed
// into place only once complete, so a partially written file is never left
// at the destination path.
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	userAgent   string
	idleTimeout time.Duration
	backoffFunc func(attempt int) time.Duration
}

// NewClient creates a new download client. timeout bounds connection setup
// and response headers, and is also the longest the body may go without
// delivering any data.
func NewClient(logger *slog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   10,
			},
		},
		logger:      logger,
		userAgent:   "jarsync/1.0",
		idleTimeout: timeout,
		backoffFunc: calculateBackoffDelay,
	}
}

// Download fetches opts.URL into opts.DestPath, creating parent directories.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, error) {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 1
	}

	startTime := time.Now()
	var lastErr error

	if dir := filepath.Dir(opts.DestPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	for attempt := 1; attempt <= opts.RetryCount; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("download cancelled: %w", ctx.Err())
		default:
		}

		result, err := c.downloadAttempt(ctx, opts)
		if err == nil {
			result.Attempts = attempt
			result.Duration = time.Since(startTime)
			return result, nil
		}

		lastErr = err
		c.logger.Warn("download attempt failed", "url", opts.URL, "attempt", attempt, "error", err)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if shouldNotRetry(err) {
			return nil, err
		}

		if attempt < opts.RetryCount {
			delay := c.backoffFunc(attempt)
			c.logger.Debug("retrying download", "url", opts.URL, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("download cancelled during retry: %w", ctx.Err())
			}
		}
	}

	if opts.RetryCount == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("download failed after %d attempts: %w", opts.RetryCount, lastErr)
}

// downloadAttempt performs a single download attempt into a temp file.
func (c *Client) downloadAttempt(parent context.Context, opts DownloadOptions) (*DownloadResult, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(opts.DestPath), "."+filepath.Base(opts.DestPath)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	idle := &idleReader{reader: resp.Body, timeout: c.idleTimeout}
	idle.timer = time.AfterFunc(c.idleTimeout, func() { cancel(ErrStalled) })
	defer idle.timer.Stop()

	var reader io.Reader = idle
	if opts.OnProgress != nil {
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		reader = &progressReader{reader: idle, callback: opts.OnProgress, total: total}
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), reader)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrStalled) {
			return nil, fmt.Errorf("%w: no data for %s", ErrStalled, c.idleTimeout)
		}
		return nil, fmt.Errorf("failed to write to file: %w", err)
	}
	if resp.ContentLength >= 0 && size != resp.ContentLength {
		return nil, fmt.Errorf("short body: got %d bytes, expected %d", size, resp.ContentLength)
	}

	sha256Hex := hex.EncodeToString(h.Sum(nil))

	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, opts.DestPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	return &DownloadResult{
		Path:   opts.DestPath,
		Size:   size,
		SHA256: sha256Hex,
	}, nil
}

// calculateBackoffDelay calculates exponential backoff with jitter.
// Base delay is 1s, doubles each attempt, plus random jitter up to half the delay.
func calculateBackoffDelay(attempt int) time.Duration {
	baseDelay := time.Second
	exponentialDelay := time.Duration(math.Pow(2, float64(attempt-1))) * baseDelay
	maxJitter := exponentialDelay / 2
	jitter := time.Duration(rand.Int63n(int64(maxJitter)))
	return exponentialDelay + jitter
}

// shouldNotRetry returns true if the error should not trigger a retry.
func shouldNotRetry(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// 4xx other than 429 will not change on retry
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
			return true
		}
	}
	return false
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Status)
}

// progressReader wraps a reader and calls a progress callback as data is read.
type progressReader struct {
	reader   io.Reader
	callback ProgressFunc
	current  int64
	total    int64
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.callback(pr.current, pr.total)
	}
	return n, err
}

// idleReader pushes the stall deadline forward every time data arrives.
type idleReader struct {
	reader  io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}
