package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-mosaic/app/aggregator"
	"github.com/lysyi3m/rss-mosaic/app/api"
	"github.com/lysyi3m/rss-mosaic/app/archive"
	"github.com/lysyi3m/rss-mosaic/app/cfg"
	"github.com/lysyi3m/rss-mosaic/app/feed"
	"github.com/lysyi3m/rss-mosaic/app/fetch"
	"github.com/lysyi3m/rss-mosaic/app/pager"
	"github.com/lysyi3m/rss-mosaic/app/registry"
	"github.com/lysyi3m/rss-mosaic/app/snapshot"
)

// newRegistry loads the feeds directory, falling back to the built-in
// sources when it does not exist.
func newRegistry(c *cfg.Cfg) registry.Registry {
	if info, err := os.Stat(c.FeedsDir); err != nil || !info.IsDir() {
		slog.Warn("Feeds directory not found, using built-in sources", "dir", c.FeedsDir)
		return registry.Defaults
	}

	reg := registry.NewDirRegistry(c.FeedsDir, c.Categories)
	reg.Run()
	slog.Info("Feed registry loaded", "dir", c.FeedsDir, "categories", reg.GetCategories(), "sources", len(reg.ListSources()))
	return reg
}

func newFetcher(c *cfg.Cfg, client *http.Client) *fetch.Fetcher {
	return fetch.NewFetcher(client, fetch.Options{
		ProxyURL:  c.ProxyURL,
		UserAgent: c.UserAgent,
		Timeout:   c.FetchTimeout,
	})
}

func newAggregator(c *cfg.Cfg, reg registry.Registry) *aggregator.Aggregator {
	client := &http.Client{}

	var lookups []feed.ImageLookup
	for _, name := range c.ImageLookups {
		switch name {
		case cfg.LookupUnsplash:
			lookups = append(lookups, feed.NewUnsplashLookup(client, c.UnsplashKey))
		case cfg.LookupPage:
			lookups = append(lookups, feed.NewPageImageLookup(client, c.UserAgent))
		}
	}

	parser := feed.NewParser(feed.NewResolver(c.LookupTimeout, lookups...))

	return aggregator.New(reg, newFetcher(c, client), parser, aggregator.Config{
		Headers:       c.Headers,
		Concurrency:   c.Concurrency,
		SourceTimeout: c.SourceTimeout,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type serveCommand struct {
	Port       string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	SessionTTL int    `long:"session-ttl" env:"SESSION_TTL" default:"30" description:"Minutes an idle browsing session is kept"`
}

func (s *serveCommand) Execute(_ []string) error {
	c := cfg.Get()
	reg := newRegistry(c)

	handler := api.NewHandler(reg, newAggregator(c, reg), api.NewSessionStore(time.Duration(s.SessionTTL)*time.Minute))

	httpServer := &http.Server{
		Addr:         ":" + s.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", s.Port, "version", c.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	ctx, stop := signalContext()
	defer stop()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
		slog.Error("Server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS Mosaic server stopped")
	return serveErr
}

type fetchCommand struct {
	Mode     string `long:"mode" choice:"latest" choice:"explore" default:"latest" description:"Ordering of the aggregated articles"`
	Limit    int    `long:"limit" default:"32" description:"Articles per page"`
	Pages    int    `long:"pages" default:"0" description:"Stop after this many pages (0 = all)"`
	Day      string `long:"day" description:"Only articles published on this day (YYYY-MM-DD)"`
	Category string `long:"in-category" description:"Only sources of this category"`
}

func (f *fetchCommand) Execute(_ []string) error {
	c := cfg.Get()

	mode, err := aggregator.ParseMode(f.Mode)
	if err != nil {
		return err
	}

	var opts []aggregator.Option
	if f.Category != "" {
		opts = append(opts, aggregator.InCategory(f.Category))
	}
	if f.Day != "" {
		day, err := time.ParseInLocation(time.DateOnly, f.Day, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --day %q: %w", f.Day, err)
		}
		opts = append(opts, aggregator.OnDay(day))
	}

	ctx, stop := signalContext()
	defer stop()

	result, err := newAggregator(c, newRegistry(c)).Aggregate(ctx, mode, opts...)
	if err != nil {
		return err
	}

	p := pager.New()
	page := p.Start(result.Articles, f.Limit)
	for printed := 1; ; printed++ {
		printPage(page)
		if page.Last || (f.Pages > 0 && printed >= f.Pages) {
			break
		}

		var ok bool
		if page, ok = p.Next(); !ok {
			break
		}
		p.Consumed()
	}

	return nil
}

func printPage(page pager.Page) {
	fmt.Printf("# page %d (%d articles)\n", page.Index+1, len(page.Articles))
	for _, a := range page.Articles {
		date := "unknown"
		if a.HasDate() {
			date = a.PublishedAt.In(time.Local).Format(time.DateTime)
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", date, a.SourceName, a.Title, a.Link)
	}
}

type snapshotCommand struct {
	Dir      string `long:"dir" env:"SNAPSHOT_DIR" default:"./feeds-raw" description:"Directory receiving <host>.xml files"`
	DB       string `long:"db" env:"SNAPSHOT_DB" default:"./feeds-raw/snapshots.db" description:"Path of the sqlite snapshot ledger"`
	Interval int    `long:"interval" env:"SNAPSHOT_INTERVAL" default:"0" description:"Minutes between passes (0 = run once)"`
}

func (s *snapshotCommand) Execute(_ []string) error {
	c := cfg.Get()

	store, err := snapshot.OpenStore(s.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	job := snapshot.NewJob(newRegistry(c), newFetcher(c, &http.Client{}), store, s.Dir, c.Headers)

	ctx, stop := signalContext()
	defer stop()

	return job.Loop(ctx, time.Duration(s.Interval)*time.Minute)
}

type archiveCommand struct {
	Dir string `long:"dir" env:"ARCHIVE_DIR" default:"./articles" description:"Root directory of the day archive"`
}

func (a *archiveCommand) Execute(_ []string) error {
	c := cfg.Get()

	ctx, stop := signalContext()
	defer stop()

	result, err := newAggregator(c, newRegistry(c)).Aggregate(ctx, aggregator.ModeLatest)
	if err != nil {
		return err
	}

	summary, err := archive.Write(a.Dir, result.Articles)
	if err != nil {
		return err
	}

	slog.Info("Archive written", "dir", a.Dir, "days", summary.Days, "articles", summary.Articles, "skipped", summary.Skipped)
	return nil
}
