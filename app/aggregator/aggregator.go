package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lysyi3m/rss-mosaic/app/feed"
	"github.com/lysyi3m/rss-mosaic/app/fetch"
	"github.com/lysyi3m/rss-mosaic/app/registry"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeLatest  Mode = "latest"
	ModeExplore Mode = "explore"
)

// ParseMode accepts "latest" (also the empty string) and "explore".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLatest:
		return ModeLatest, nil
	case ModeExplore:
		return ModeExplore, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// ErrNoArticles is returned when every source came back empty or failed.
var ErrNoArticles = errors.New("no articles available")

type Result struct {
	Mode        Mode           `json:"mode"`
	Articles    []feed.Article `json:"articles"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SourceResult is the outcome of one source's fetch task. A failed task
// carries Err and no articles.
type SourceResult struct {
	Source   registry.Source
	Articles []feed.Article
	Err      error
}

// Extractor turns raw markup into articles for one source. An error means
// the markup was not a feed at all.
type Extractor interface {
	Parse(ctx context.Context, data []byte, src registry.Source) ([]feed.Article, error)
}

var _ Extractor = (*feed.Parser)(nil)

// DefaultSourceTimeout bounds fetching plus extraction of one source.
const DefaultSourceTimeout = 60 * time.Second

type Config struct {
	// Headers are sent with every feed request.
	Headers map[string]string
	// Concurrency caps in-flight fetches. Zero means no limit.
	Concurrency int
	// SourceTimeout bounds one source's fetch and extraction. Image lookups
	// still pending when it expires are skipped. Zero selects DefaultSourceTimeout.
	SourceTimeout time.Duration
}

type Aggregator struct {
	registry      registry.Registry
	retriever     fetch.Retriever
	extractor     Extractor
	headers       map[string]string
	concurrency   int
	sourceTimeout time.Duration
	intn          func(n int) int
	now           func() time.Time
}

func New(reg registry.Registry, retriever fetch.Retriever, extractor Extractor, config Config) *Aggregator {
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = DefaultSourceTimeout
	}

	return &Aggregator{
		registry:      reg,
		retriever:     retriever,
		extractor:     extractor,
		headers:       config.Headers,
		concurrency:   config.Concurrency,
		sourceTimeout: config.SourceTimeout,
		intn:          rand.IntN,
		now:           time.Now,
	}
}

// WithShuffleSource replaces the random source used by explore mode.
func (a *Aggregator) WithShuffleSource(intn func(n int) int) *Aggregator {
	a.intn = intn
	return a
}

type request struct {
	category string
	day      time.Time
}

type Option func(*request)

// InCategory restricts aggregation to sources of one category. Both the
// key ("cloud-security") and the label ("Cloud Security") are accepted.
func InCategory(category string) Option {
	return func(r *request) {
		r.category = strings.TrimSpace(category)
	}
}

// OnDay keeps only articles published on the same calendar day as day,
// compared in day's location. Undated articles never match.
func OnDay(day time.Time) Option {
	return func(r *request) {
		r.day = day
	}
}

// Aggregate fetches every registered source concurrently, merges what
// succeeded and orders it according to mode. A failing source only loses
// its own articles.
func (a *Aggregator) Aggregate(ctx context.Context, mode Mode, opts ...Option) (Result, error) {
	start := time.Now()

	var req request
	for _, opt := range opts {
		opt(&req)
	}

	sources := a.registry.ListSources()
	if req.category != "" {
		sources = lo.Filter(sources, func(src registry.Source, _ int) bool {
			return matchesCategory(src, req.category)
		})
	}

	results := a.fanOut(ctx, sources)
	articles := lo.Flatten(lo.Map(results, func(r SourceResult, _ int) []feed.Article {
		return r.Articles
	}))

	if !req.day.IsZero() {
		articles = lo.Filter(articles, func(article feed.Article, _ int) bool {
			return sameDay(article, req.day)
		})
	}

	switch mode {
	case ModeExplore:
		Shuffle(articles, a.intn)
	default:
		mode = ModeLatest
		SortLatest(articles)
	}

	aggregationDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	aggregatedArticles.WithLabelValues(string(mode)).Set(float64(len(articles)))

	result := Result{Mode: mode, GeneratedAt: a.now()}
	if len(articles) == 0 {
		aggregations.WithLabelValues(string(mode), "empty").Inc()
		slog.Info("Aggregation produced no articles", "mode", mode, "sources", len(sources))
		return result, ErrNoArticles
	}

	aggregations.WithLabelValues(string(mode), "ok").Inc()
	slog.Info("Aggregation completed",
		"mode", mode,
		"sources", len(sources),
		"articles", len(articles),
		"duration", time.Since(start))

	result.Articles = articles
	return result, nil
}

// fanOut runs one task per source and waits for all of them. Results keep
// registry order regardless of completion order.
func (a *Aggregator) fanOut(ctx context.Context, sources []registry.Source) []SourceResult {
	results := make([]SourceResult, len(sources))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.collect(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Aggregator) collect(ctx context.Context, src registry.Source) (result SourceResult) {
	result.Source = src

	defer func() {
		if r := recover(); r != nil {
			result = SourceResult{Source: src, Err: fmt.Errorf("panic while processing feed: %v", r)}
		}
		if result.Err != nil {
			slog.Warn("Failed to process feed", "source", src.Name, "url", src.URL, "error", result.Err)
			sourceFailures.WithLabelValues(src.Name).Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	data, err := a.retriever.Fetch(ctx, src.URL, a.headers)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch feed: %w", err)
		return result
	}

	articles, err := a.extractor.Parse(ctx, data, src)
	if err != nil {
		result.Err = fmt.Errorf("failed to parse feed: %w", err)
		return result
	}

	result.Articles = articles
	slog.Debug("Feed processed", "source", src.Name, "articles", len(result.Articles))
	return result
}

func matchesCategory(src registry.Source, category string) bool {
	return strings.EqualFold(src.Category, category) ||
		strings.EqualFold(src.Category, registry.CategoryLabel(category))
}

func sameDay(article feed.Article, day time.Time) bool {
	if !article.HasDate() {
		return false
	}
	y1, m1, d1 := article.PublishedAt.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
