package feed

import "time"

// Article is one normalized item. It is a value snapshot: the owning
// source's category, name and priority are copied in at extraction time.
type Article struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PublishedRaw string    `json:"published_raw"`
	PublishedAt  time.Time `json:"published_at"` // zero when the date is missing or unparseable
	Summary      string    `json:"summary"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Author       string    `json:"author"`
	Category     string    `json:"category"`
	SourceName   string    `json:"source_name"`
	Priority     int       `json:"priority"`
}

// HasDate reports whether PublishedAt holds a real date rather than the
// unknown sentinel.
func (a Article) HasDate() bool {
	return !a.PublishedAt.IsZero()
}
