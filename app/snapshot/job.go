package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/rss-mosaic/app/fetch"
	"github.com/lysyi3m/rss-mosaic/app/registry"
)

// Summary counts what one pass did.
type Summary struct {
	Written   int
	Unchanged int
	Failed    int
}

// Job writes the raw markup of every registered feed to <dir>/<host>.xml.
// Feeds whose content has not changed since the last pass are skipped.
type Job struct {
	registry  registry.Registry
	retriever fetch.Retriever
	ledger    Ledger
	dir       string
	headers   map[string]string
	now       func() time.Time
}

func NewJob(reg registry.Registry, retriever fetch.Retriever, ledger Ledger, dir string, headers map[string]string) *Job {
	return &Job{
		registry:  reg,
		retriever: retriever,
		ledger:    ledger,
		dir:       dir,
		headers:   headers,
		now:       time.Now,
	}
}

// Run performs one pass over all sources. Only ledger and filesystem setup
// errors are returned; a failing feed is logged and counted.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return summary, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	sources := j.registry.ListSources()
	names := fileNames(sources)

	for _, src := range sources {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		written, err := j.snapshot(ctx, src, names[src.URL])
		switch {
		case err != nil:
			slog.Warn("Failed to snapshot feed", "source", src.Name, "url", src.URL, "error", err)
			summary.Failed++
		case written:
			summary.Written++
		default:
			summary.Unchanged++
		}
	}

	slog.Info("Snapshot pass completed",
		"written", summary.Written,
		"unchanged", summary.Unchanged,
		"failed", summary.Failed)

	return summary, nil
}

// Loop runs a pass immediately and then every interval until ctx is done.
// A zero interval runs exactly once.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if _, err := j.Run(ctx); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

func (j *Job) snapshot(ctx context.Context, src registry.Source, name string) (bool, error) {
	data, err := j.retriever.Fetch(ctx, src.URL, j.headers)
	if err != nil {
		return false, err
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	last, err := j.ledger.Last(ctx, src.URL)
	if err != nil {
		return false, err
	}
	path := filepath.Join(j.dir, name)
	if last != nil && last.SHA256 == digest && fileExists(path) {
		slog.Debug("Feed unchanged, skipping", "source", src.Name, "file", name)
		return false, nil
	}

	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}

	err = j.ledger.Save(ctx, Record{
		URL:       src.URL,
		Host:      hostOf(src.URL),
		File:      name,
		SHA256:    digest,
		Bytes:     len(data),
		FetchedAt: j.now(),
	})
	if err != nil {
		return false, err
	}

	slog.Debug("Feed snapshot written", "source", src.Name, "file", name, "bytes", len(data))
	return true, nil
}

// fileNames maps each source URL to its snapshot file. Hosts shared by
// several sources get a URL digest suffix so files do not collide.
func fileNames(sources []registry.Source) map[string]string {
	perHost := make(map[string]int)
	for _, src := range sources {
		perHost[hostOf(src.URL)]++
	}

	names := make(map[string]string, len(sources))
	for _, src := range sources {
		host := hostOf(src.URL)
		if perHost[host] > 1 {
			sum := sha256.Sum256([]byte(src.URL))
			names[src.URL] = fmt.Sprintf("%s-%s.xml", host, hex.EncodeToString(sum[:4]))
			continue
		}
		names[src.URL] = host + ".xml"
	}
	return names
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		sum := sha256.Sum256([]byte(rawURL))
		return "feed-" + hex.EncodeToString(sum[:4])
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}
