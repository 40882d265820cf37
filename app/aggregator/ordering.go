package aggregator

import (
	"cmp"
	"slices"

	"github.com/lysyi3m/rss-mosaic/app/feed"
)

// SortLatest orders articles newest first. Undated articles sort after every
// dated one; equal dates fall back to the higher source priority. The sort
// is stable, so remaining ties keep their input order.
func SortLatest(articles []feed.Article) {
	slices.SortStableFunc(articles, compareLatest)
}

func compareLatest(a, b feed.Article) int {
	switch {
	case a.HasDate() && !b.HasDate():
		return -1
	case !a.HasDate() && b.HasDate():
		return 1
	}

	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.Priority, a.Priority)
}

// Shuffle is a Fisher-Yates shuffle; intn must return a uniform value in [0, n).
func Shuffle(articles []feed.Article, intn func(n int) int) {
	for i := len(articles) - 1; i > 0; i-- {
		j := intn(i + 1)
		articles[i], articles[j] = articles[j], articles[i]
	}
}
