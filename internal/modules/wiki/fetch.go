package wiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wikiquiz/server/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxBytes  = 10 << 20
)

// Fetcher downloads article markup.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client = &http.Client{Timeout: d, Transport: f.client.Transport}
		}
	}
}

// WithMaxBytes caps the response body; 0 disables the cap.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBytes = n }
}

func WithFetchLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l.Named("Fetcher")
		}
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the markup at rawURL. Transport failures and non-2xx
// responses are reported as fetch errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", apperr.Fetch("Failed to fetch Wikipedia article", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.Fetch("Failed to fetch Wikipedia article", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", apperr.Fetch("Failed to fetch Wikipedia article",
			fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL))
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return "", apperr.Fetch("Failed to fetch Wikipedia article", err)
	}

	f.logger.Debug("fetched article",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)),
	)
	return string(body), nil
}

// readLimited reads at most limit bytes and fails if the body is larger.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}
