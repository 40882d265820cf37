package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpguts"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "RSS Mosaic/1.0"
	DefaultMaxBodySize = 10 << 20
)

// ErrBodyTooLarge is returned when a response exceeds Options.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// Retriever fetches raw feed markup.
type Retriever interface {
	Fetch(ctx context.Context, target string, headers map[string]string) ([]byte, error)
}

var _ Retriever = (*Fetcher)(nil)

type Options struct {
	// ProxyURL is prepended to the query-escaped target URL. Empty fetches directly.
	ProxyURL  string
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
	// MaxBodySize caps the accepted response size in bytes. Zero selects DefaultMaxBodySize.
	MaxBodySize int64
}

type Fetcher struct {
	httpClient  *http.Client
	proxyURL    string
	userAgent   string
	timeout     time.Duration
	headers     map[string]string
	maxBodySize int64
}

func NewFetcher(httpClient *http.Client, opts Options) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}

	return &Fetcher{
		httpClient:  httpClient,
		proxyURL:    opts.ProxyURL,
		userAgent:   opts.UserAgent,
		timeout:     opts.Timeout,
		headers:     opts.Headers,
		maxBodySize: opts.MaxBodySize,
	}
}

// Fetch retrieves target through the configured proxy. Headers passed by the
// caller override the fetcher defaults.
func (f *Fetcher) Fetch(ctx context.Context, target string, headers map[string]string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, f.RequestURL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	for name, value := range f.headers {
		req.Header.Set(name, value)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &NetworkError{URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, target, f.maxBodySize)
	}

	return data, nil
}

// RequestURL returns the URL actually requested for target.
func (f *Fetcher) RequestURL(target string) string {
	if f.proxyURL == "" {
		return target
	}
	return f.proxyURL + url.QueryEscape(target)
}

// ValidateHeaders rejects header names or values that cannot be sent on the wire.
func ValidateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header name '%s'", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("invalid value for header '%s'", name)
		}
	}
	return nil
}
