package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/rss-mosaic/app/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDocument(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestWriteGroupsByUTCDay(t *testing.T) {
	dir := t.TempDir()
	berlin := time.FixedZone("CET", 3600)

	articles := []feed.Article{
		{
			Title:        "First",
			Link:         "https://example.com/1",
			PublishedAt:  time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC),
			Summary:      "one",
			ThumbnailURL: "https://example.com/1.jpg",
			Category:     "Tech",
		},
		{
			Title:       "Second",
			Link:        "https://example.com/2",
			PublishedAt: time.Date(2024, 3, 2, 0, 30, 0, 0, berlin),
			Category:    "News",
		},
		{
			Title:       "Third",
			Link:        "https://example.com/3",
			PublishedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{Title: "Undated", Link: "https://example.com/4"},
	}

	summary, err := Write(dir, articles)
	require.NoError(t, err)
	assert.Equal(t, Summary{Days: 2, Articles: 3, Skipped: 1}, summary)

	first := readDocument(t, filepath.Join(dir, "2024", "03", "01", "articles.json"))
	require.Len(t, first.Node, 2)
	assert.Equal(t, Entry{
		Title:     "First",
		Image:     "https://example.com/1.jpg",
		Permalink: "https://example.com/1",
		CreatedAt: "2024-03-01T23:30:00.000Z",
		Summary:   "one",
		Tags:      []string{"Tech"},
	}, first.Node[0])
	assert.Equal(t, "Second", first.Node[1].Title)
	assert.Equal(t, "2024-03-01T23:30:00.000Z", first.Node[1].CreatedAt)

	second := readDocument(t, filepath.Join(dir, "2024", "03", "02", "articles.json"))
	require.Len(t, second.Node, 1)
	assert.Equal(t, "Third", second.Node[0].Title)
	assert.Empty(t, second.Node[0].Tags)
}

func TestWriteEmpty(t *testing.T) {
	summary, err := Write(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary)
}

func TestWriteReplacesExistingDay(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := Write(dir, []feed.Article{{Title: "Old", PublishedAt: day}, {Title: "Older", PublishedAt: day}})
	require.NoError(t, err)
	_, err = Write(dir, []feed.Article{{Title: "New", PublishedAt: day}})
	require.NoError(t, err)

	doc := readDocument(t, filepath.Join(dir, "2024", "03", "01", "articles.json"))
	require.Len(t, doc.Node, 1)
	assert.Equal(t, "New", doc.Node[0].Title)
}
