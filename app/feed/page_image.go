package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-shiori/go-readability"
)

const maxPageSize = 5 << 20

var _ ImageLookup = (*PageImageLookup)(nil)

// PageImageLookup fetches the article page and uses its lead image.
type PageImageLookup struct {
	httpClient *http.Client
	userAgent  string
}

func NewPageImageLookup(httpClient *http.Client, userAgent string) *PageImageLookup {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &PageImageLookup{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (l *PageImageLookup) Name() string {
	return "page"
}

func (l *PageImageLookup) Lookup(ctx context.Context, q LookupQuery) (string, error) {
	if q.Link == "" {
		return "", fmt.Errorf("article has no link")
	}

	pageURL, err := url.Parse(q.Link)
	if err != nil {
		return "", fmt.Errorf("invalid article link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.Link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageSize), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract page: %w", err)
	}

	if article.Image == "" {
		return "", errNoImage
	}

	return article.Image, nil
}
