package cfg

import "time"

type Cfg struct {
	// Feed registry
	FeedsDir   string
	Categories []string

	// Retrieval
	ProxyURL      string
	Headers       map[string]string
	FetchTimeout  time.Duration
	SourceTimeout time.Duration
	Concurrency   int
	UserAgent     string

	// Thumbnail lookups
	ImageLookups  []string
	UnsplashKey   string
	LookupTimeout time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	LogFile  string
	Version  string
}

const (
	LookupUnsplash = "unsplash"
	LookupPage     = "page"
	LookupNone     = "none"
)
