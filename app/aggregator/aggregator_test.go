package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/rss-mosaic/app/feed"
	"github.com/lysyi3m/rss-mosaic/app/fetch"
	"github.com/lysyi3m/rss-mosaic/app/registry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRetriever answers with the requested URL as the body, or the
// configured error for that URL.
type stubRetriever struct {
	errs     map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubRetriever) Fetch(ctx context.Context, target string, _ map[string]string) ([]byte, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err := s.errs[target]; err != nil {
		return nil, err
	}
	return []byte(target), nil
}

// stubExtractor returns canned articles keyed by source URL.
type stubExtractor struct {
	mu       sync.Mutex
	articles map[string][]feed.Article
	errs     map[string]error
	panicOn  string
}

func (s *stubExtractor) Parse(_ context.Context, data []byte, src registry.Source) ([]feed.Article, error) {
	if string(data) == s.panicOn {
		panic("boom")
	}
	if err := s.errs[string(data)]; err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feed.Article, 0, len(s.articles[string(data)]))
	for _, a := range s.articles[string(data)] {
		a.SourceName = src.Name
		a.Priority = src.Priority
		a.Category = src.Category
		out = append(out, a)
	}
	return out, nil
}

// bodyRetriever serves the same body for every URL.
type bodyRetriever []byte

func (b bodyRetriever) Fetch(context.Context, string, map[string]string) ([]byte, error) {
	return b, nil
}

// slowLookup never finds an image and takes delay to say so.
type slowLookup struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *slowLookup) Name() string { return "slow" }

func (s *slowLookup) Lookup(ctx context.Context, _ feed.LookupQuery) (string, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
		return "", errors.New("no match")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func at(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func titles(articles []feed.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func fixture() (registry.Static, *stubExtractor) {
	sources := registry.Static{
		{Name: "Alpha", URL: "a", Category: "Tech", Priority: 1},
		{Name: "Beta", URL: "b", Category: "Science", Priority: 5},
		{Name: "Gamma", URL: "c", Category: "Tech", Priority: 3},
	}
	extractor := &stubExtractor{articles: map[string][]feed.Article{
		"a": {
			{Title: "a-new", PublishedAt: at(3, 10)},
			{Title: "a-undated"},
			{Title: "a-tie", PublishedAt: at(2, 8)},
		},
		"b": {
			{Title: "b-tie", PublishedAt: at(2, 8)},
			{Title: "b-undated"},
		},
		"c": {
			{Title: "c-old", PublishedAt: at(1, 0)},
			{Title: "c-tie", PublishedAt: at(2, 8)},
		},
	}}
	return sources, extractor
}

func TestAggregateLatestOrdering(t *testing.T) {
	sources, extractor := fixture()
	agg := New(sources, &stubRetriever{}, extractor, Config{})

	result, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)

	assert.Equal(t, ModeLatest, result.Mode)
	assert.Equal(t, []string{
		"a-new",
		"b-tie", "c-tie", "a-tie",
		"c-old",
		"b-undated", "a-undated",
	}, titles(result.Articles))
}

func TestAggregateLatestIsDeterministic(t *testing.T) {
	sources, extractor := fixture()
	agg := New(sources, &stubRetriever{delay: time.Millisecond}, extractor, Config{})

	first, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)

	assert.Equal(t, titles(first.Articles), titles(second.Articles))
}

func TestAggregateExploreIsPermutation(t *testing.T) {
	sources, extractor := fixture()
	agg := New(sources, &stubRetriever{}, extractor, Config{})

	latest, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	explore, err := agg.Aggregate(context.Background(), ModeExplore)
	require.NoError(t, err)

	assert.Equal(t, ModeExplore, explore.Mode)
	assert.ElementsMatch(t, titles(latest.Articles), titles(explore.Articles))
}

func TestAggregateExploreUsesShuffleSource(t *testing.T) {
	sources := registry.Static{{Name: "Alpha", URL: "a"}}
	extractor := &stubExtractor{articles: map[string][]feed.Article{
		"a": {{Title: "1"}, {Title: "2"}, {Title: "3"}},
	}}
	agg := New(sources, &stubRetriever{}, extractor, Config{}).
		WithShuffleSource(func(int) int { return 0 })

	result, err := agg.Aggregate(context.Background(), ModeExplore)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "1"}, titles(result.Articles))
}

func TestAggregateIsolatesFailures(t *testing.T) {
	sources, extractor := fixture()
	retriever := &stubRetriever{errs: map[string]error{
		"b": &fetch.HTTPError{URL: "b", StatusCode: http.StatusBadGateway},
	}}
	extractor.panicOn = "c"
	agg := New(sources, retriever, extractor, Config{})

	result, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-new", "a-tie", "a-undated"}, titles(result.Articles))
}

func TestAggregateReportsParseFailures(t *testing.T) {
	sources, extractor := fixture()
	invalid := errors.New("failed to detect feed type")
	extractor.errs = map[string]error{"b": invalid}
	agg := New(sources, &stubRetriever{}, extractor, Config{})
	before := testutil.ToFloat64(sourceFailures.WithLabelValues("Beta"))

	result := agg.collect(context.Background(), sources[1])
	assert.ErrorIs(t, result.Err, invalid)
	assert.Contains(t, result.Err.Error(), "failed to parse feed")
	assert.Empty(t, result.Articles)
	assert.Equal(t, before+1, testutil.ToFloat64(sourceFailures.WithLabelValues("Beta")))

	aggregated, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	assert.NotContains(t, titles(aggregated.Articles), "b-tie")
}

func TestAggregateSourceDeadlineBoundsLookups(t *testing.T) {
	var items strings.Builder
	for i := range 20 {
		fmt.Fprintf(&items, "<item><title>Item %d</title><link>https://example.com/%d</link></item>", i, i)
	}
	rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>` + items.String() + `</channel></rss>`

	lookup := &slowLookup{delay: 50 * time.Millisecond}
	parser := feed.NewParser(feed.NewResolver(time.Second, lookup))
	sources := registry.Static{{Name: "Slow", URL: "slow"}}
	agg := New(sources, bodyRetriever(rss), parser, Config{SourceTimeout: 120 * time.Millisecond})

	start := time.Now()
	result, err := agg.Aggregate(context.Background(), ModeLatest)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, result.Articles, 20)
	assert.Less(t, elapsed, 600*time.Millisecond)
	assert.Less(t, lookup.calls.Load(), int32(20))
}

func TestAggregateNoArticles(t *testing.T) {
	tests := []struct {
		name      string
		sources   registry.Static
		retriever *stubRetriever
	}{
		{name: "empty registry", sources: registry.Static{}, retriever: &stubRetriever{}},
		{
			name:    "all sources fail",
			sources: registry.Static{{Name: "Alpha", URL: "a"}, {Name: "Beta", URL: "b"}},
			retriever: &stubRetriever{errs: map[string]error{
				"a": errors.New("dial tcp: refused"),
				"b": &fetch.NetworkError{URL: "b", Err: context.DeadlineExceeded},
			}},
		},
		{name: "sources without items", sources: registry.Static{{Name: "Empty", URL: "none"}}, retriever: &stubRetriever{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, extractor := fixture()
			agg := New(tt.sources, tt.retriever, extractor, Config{})

			result, err := agg.Aggregate(context.Background(), ModeExplore)
			assert.ErrorIs(t, err, ErrNoArticles)
			assert.Equal(t, ModeExplore, result.Mode)
			assert.Empty(t, result.Articles)
		})
	}
}

func TestAggregateInCategory(t *testing.T) {
	sources, extractor := fixture()
	agg := New(sources, &stubRetriever{}, extractor, Config{})

	for _, category := range []string{"tech", "Tech"} {
		result, err := agg.Aggregate(context.Background(), ModeLatest, InCategory(category))
		require.NoError(t, err)
		for _, a := range result.Articles {
			assert.Equal(t, "Tech", a.Category)
		}
		assert.Len(t, result.Articles, 5)
	}

	_, err := agg.Aggregate(context.Background(), ModeLatest, InCategory("sports"))
	assert.ErrorIs(t, err, ErrNoArticles)
}

func TestAggregateOnDay(t *testing.T) {
	sources, extractor := fixture()
	agg := New(sources, &stubRetriever{}, extractor, Config{})

	result, err := agg.Aggregate(context.Background(), ModeLatest, OnDay(at(2, 23)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b-tie", "c-tie", "a-tie"}, titles(result.Articles))
}

func TestAggregateConcurrencyLimit(t *testing.T) {
	sources := registry.Static{}
	articles := map[string][]feed.Article{}
	for _, u := range []string{"1", "2", "3", "4", "5", "6"} {
		sources = append(sources, registry.Source{Name: u, URL: u})
		articles[u] = []feed.Article{{Title: u}}
	}
	retriever := &stubRetriever{delay: 10 * time.Millisecond}
	agg := New(sources, retriever, &stubExtractor{articles: articles}, Config{Concurrency: 2})

	result, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	assert.Len(t, result.Articles, 6)
	assert.LessOrEqual(t, retriever.peak.Load(), int32(2))
}

func TestAggregateEndToEnd(t *testing.T) {
	const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title>
<item><title>Older</title><link>https://example.com/1</link><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
<enclosure url="https://example.com/1.jpg" type="image/jpeg" length="1"/></item>
<item><title>Newer</title><link>https://example.com/2</link><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	sources := registry.Static{
		{Name: "Good", URL: server.URL + "/feed", Category: "Tech", Priority: 2},
		{Name: "Broken", URL: server.URL + "/broken", Category: "Tech", Priority: 9},
	}
	fetcher := fetch.NewFetcher(server.Client(), fetch.Options{Timeout: 5 * time.Second})
	agg := New(sources, fetcher, feed.NewParser(nil), Config{})

	result, err := agg.Aggregate(context.Background(), ModeLatest)
	require.NoError(t, err)
	require.Len(t, result.Articles, 2)
	assert.Equal(t, "Newer", result.Articles[0].Title)
	assert.Equal(t, "Older", result.Articles[1].Title)
	assert.Equal(t, "https://example.com/1.jpg", result.Articles[1].ThumbnailURL)
	assert.Equal(t, "Good", result.Articles[1].SourceName)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeLatest, false},
		{"latest", ModeLatest, false},
		{"EXPLORE", ModeExplore, false},
		{"random", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
