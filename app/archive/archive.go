package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/lysyi3m/rss-mosaic/app/feed"
	"github.com/samber/lo"
)

const fileName = "articles.json"

// Entry is the archived form of one article.
type Entry struct {
	Title     string   `json:"title"`
	Image     string   `json:"image"`
	Permalink string   `json:"permalink"`
	CreatedAt string   `json:"createdAt"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
}

type Document struct {
	Node []Entry `json:"node"`
}

type Summary struct {
	Days     int
	Articles int
	Skipped  int
}

// Write groups articles by UTC publication day and writes each group to
// <dir>/YYYY/MM/DD/articles.json, replacing what was there. Undated
// articles cannot be placed on a day and are skipped.
func Write(dir string, articles []feed.Article) (Summary, error) {
	dated := lo.Filter(articles, func(a feed.Article, _ int) bool {
		return a.HasDate()
	})
	summary := Summary{Skipped: len(articles) - len(dated)}

	days := lo.GroupBy(dated, func(a feed.Article) string {
		return a.PublishedAt.UTC().Format("2006/01/02")
	})

	keys := lo.Keys(days)
	slices.Sort(keys)

	for _, day := range keys {
		doc := Document{Node: lo.Map(days[day], func(a feed.Article, _ int) Entry {
			return toEntry(a)
		})}

		if err := writeDocument(filepath.Join(dir, filepath.FromSlash(day)), doc); err != nil {
			return summary, err
		}

		slog.Info("Archived articles", "day", day, "articles", len(doc.Node))
		summary.Days++
		summary.Articles += len(doc.Node)
	}

	if summary.Skipped > 0 {
		slog.Warn("Skipped undated articles", "count", summary.Skipped)
	}

	return summary, nil
}

func toEntry(a feed.Article) Entry {
	tags := []string{}
	if a.Category != "" {
		tags = append(tags, a.Category)
	}

	return Entry{
		Title:     a.Title,
		Image:     a.ThumbnailURL,
		Permalink: a.Link,
		CreatedAt: a.PublishedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Summary:   a.Summary,
		Tags:      tags,
	}
}

func writeDocument(dir string, doc Document) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	return nil
}
