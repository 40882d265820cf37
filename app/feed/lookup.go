package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const unsplashBaseURL = "https://api.unsplash.com"

var (
	errNoImage           = errors.New("no image found")
	errLookupUnavailable = errors.New("image lookup unavailable")
)

// LookupQuery describes the item an image is being looked up for.
type LookupQuery struct {
	Category string
	Link     string
	Title    string
}

// ImageLookup is a fallible, optional thumbnail source consulted when the
// item itself carries no image.
type ImageLookup interface {
	Name() string
	Lookup(ctx context.Context, q LookupQuery) (string, error)
}

var _ ImageLookup = (*UnsplashLookup)(nil)

// UnsplashLookup finds a stock photo for the item's category.
type UnsplashLookup struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	mu         sync.RWMutex
	cache      map[string]string
}

func NewUnsplashLookup(httpClient *http.Client, accessKey string) *UnsplashLookup {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &UnsplashLookup{
		httpClient: httpClient,
		baseURL:    unsplashBaseURL,
		accessKey:  accessKey,
		cache:      make(map[string]string),
	}
}

func (u *UnsplashLookup) Name() string {
	return "unsplash"
}

func (u *UnsplashLookup) Lookup(ctx context.Context, q LookupQuery) (string, error) {
	query := strings.ToLower(strings.TrimSpace(q.Category))
	if query == "" {
		return "", fmt.Errorf("empty category query")
	}

	u.mu.RLock()
	cached, ok := u.cache[query]
	u.mu.RUnlock()
	if ok {
		if cached == "" {
			return "", errNoImage
		}
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("client_id", u.accessKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to search photos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: HTTP %s", errLookupUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var result struct {
		Results []struct {
			URLs struct {
				Small string `json:"small"`
			} `json:"urls"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Results) == 0 || result.Results[0].URLs.Small == "" {
		u.mu.Lock()
		u.cache[query] = ""
		u.mu.Unlock()
		return "", errNoImage
	}

	image := result.Results[0].URLs.Small

	u.mu.Lock()
	u.cache[query] = image
	u.mu.Unlock()

	return image, nil
}
