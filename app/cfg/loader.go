package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/rss-mosaic/app/fetch"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Feed registry
	FeedsDir   string   `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing per-category feed files; built-in sources are used when it does not exist"`
	Categories []string `long:"category" env:"CATEGORIES" env-delim:"," description:"Category to load from the feeds directory (repeatable, default: every file)"`

	// Retrieval
	ProxyURL      string            `long:"proxy-url" env:"PROXY_URL" default:"https://api.allorigins.win/raw?url=" description:"Prefix for the query-escaped feed URL; empty fetches feeds directly"`
	Headers       map[string]string `long:"header" env:"FEED_HEADERS" env-delim:"," description:"Extra request header as Name:Value (repeatable)"`
	FetchTimeout  int               `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed request timeout in seconds"`
	SourceTimeout int               `long:"source-timeout" env:"SOURCE_TIMEOUT" default:"60" description:"Seconds allowed for fetching and extracting one feed, image lookups included"`
	Concurrency   int               `long:"concurrency" env:"CONCURRENCY" default:"0" description:"Maximum feeds fetched at once (0 = no limit)"`
	UserAgent     string            `long:"user-agent" env:"USER_AGENT" default:"RSS Mosaic/1.0" description:"User agent string for HTTP requests"`

	// Thumbnail lookups
	ImageLookups  []string `long:"image-lookup" env:"IMAGE_LOOKUP" env-delim:"," choice:"none" choice:"unsplash" choice:"page" description:"Fallback image lookup, tried in the given order (repeatable)"`
	UnsplashKey   string   `long:"unsplash-key" env:"UNSPLASH_ACCESS_KEY" description:"Unsplash API access key (required by the unsplash lookup)"`
	LookupTimeout int      `long:"lookup-timeout" env:"LOOKUP_TIMEOUT" default:"5" description:"Per-lookup timeout in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for day filtering and timestamps (e.g., UTC, Europe/Berlin)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated by size"`
}

var (
	raw       rawCfg
	globalCfg *Cfg
)

// NewParser returns a parser bound to the global options. Commands are
// registered on it by the caller; Load resolves the parsed values.
func NewParser() *flags.Parser {
	raw = rawCfg{}
	return flags.NewParser(&raw, flags.Default)
}

func Load() (*Cfg, error) {
	cfg, err := resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func resolve(raw rawCfg) (*Cfg, error) {
	if raw.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %d", raw.FetchTimeout)
	}
	if raw.SourceTimeout <= 0 {
		return nil, fmt.Errorf("source timeout must be positive, got %d", raw.SourceTimeout)
	}
	if raw.LookupTimeout <= 0 {
		return nil, fmt.Errorf("lookup timeout must be positive, got %d", raw.LookupTimeout)
	}
	if raw.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", raw.Concurrency)
	}
	if err := fetch.ValidateHeaders(raw.Headers); err != nil {
		return nil, err
	}

	lookups := make([]string, 0, len(raw.ImageLookups))
	for _, name := range raw.ImageLookups {
		if name == LookupNone || slices.Contains(lookups, name) {
			continue
		}
		lookups = append(lookups, name)
	}
	if slices.Contains(lookups, LookupUnsplash) && raw.UnsplashKey == "" {
		return nil, fmt.Errorf("unsplash image lookup requires --unsplash-key")
	}

	return &Cfg{
		FeedsDir:      raw.FeedsDir,
		Categories:    raw.Categories,
		ProxyURL:      raw.ProxyURL,
		Headers:       raw.Headers,
		FetchTimeout:  time.Duration(raw.FetchTimeout) * time.Second,
		SourceTimeout: time.Duration(raw.SourceTimeout) * time.Second,
		Concurrency:   raw.Concurrency,
		UserAgent:     raw.UserAgent,
		ImageLookups:  lookups,
		UnsplashKey:   raw.UnsplashKey,
		LookupTimeout: time.Duration(raw.LookupTimeout) * time.Second,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		LogFile:       raw.LogFile,
		Version:       GetVersion(),
	}, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			slog.Debug("Timezone configured", "timezone", timezone)
		}
	}
	return nil
}
