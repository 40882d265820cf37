package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var _ Registry = (*DirRegistry)(nil)

// Extensions tried, in order, for each category key. YAML is a superset of
// JSON so one decoder handles all of them.
var documentExtensions = []string{".json", ".yaml", ".yml"}

// DirRegistry loads one document per category from a directory.
type DirRegistry struct {
	feedsDir   string
	categories []string
	loaded     []string
	cache      map[string][]Source
	mu         sync.RWMutex
}

// NewDirRegistry creates a registry for the given category keys. With no
// keys, every document found in feedsDir is treated as a category.
func NewDirRegistry(feedsDir string, categories []string) *DirRegistry {
	return &DirRegistry{
		feedsDir:   feedsDir,
		categories: categories,
		cache:      make(map[string][]Source),
	}
}

// Run (re)loads every category. A category that fails to load contributes
// no sources; the failure is logged and never returned.
func (r *DirRegistry) Run() {
	keys := r.categories
	if len(keys) == 0 {
		keys = r.discover()
	}

	loaded := make(map[string][]Source, len(keys))
	for _, key := range keys {
		sources, err := r.LoadCategory(key)
		if err != nil {
			slog.Warn("Failed to load feed category", "category", key, "error", err)
			loaded[key] = nil
			continue
		}
		loaded[key] = sources
		slog.Debug("Feed category loaded", "category", key, "sources", len(sources))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = keys
	r.cache = loaded
}

// LoadCategory reads and validates a single category document.
func (r *DirRegistry) LoadCategory(key string) ([]Source, error) {
	path, err := r.findDocument(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	label := CategoryLabel(key)
	sources := make([]Source, 0, len(doc.Feeds))
	for i, src := range doc.Feeds {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			slog.Warn("Skipping feed without URL", "category", key, "index", i)
			continue
		}
		if strings.TrimSpace(src.Name) == "" {
			src.Name = src.URL
		}
		src.Category = label
		sources = append(sources, src)
	}

	return sources, nil
}

// ListSources returns all loaded sources in category order.
func (r *DirRegistry) ListSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sources []Source
	for _, key := range r.loaded {
		sources = append(sources, r.cache[key]...)
	}
	return sources
}

// GetCategories returns the display labels of the configured categories.
func (r *DirRegistry) GetCategories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	labels := make([]string, 0, len(r.loaded))
	for _, key := range r.loaded {
		labels = append(labels, CategoryLabel(key))
	}
	return labels
}

func (r *DirRegistry) findDocument(key string) (string, error) {
	for _, ext := range documentExtensions {
		path := filepath.Join(r.feedsDir, key+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no document for category '%s' in %s", key, r.feedsDir)
}

func (r *DirRegistry) discover() []string {
	entries, err := os.ReadDir(r.feedsDir)
	if err != nil {
		slog.Warn("Failed to read feeds directory", "dir", r.feedsDir, "error", err)
		return nil
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !slices.Contains(documentExtensions, ext) {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ext)
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, compareCategories)
	return keys
}

// compareCategories puts the well-known categories first, in their
// canonical order, and sorts the rest by name.
func compareCategories(a, b string) int {
	ia, ib := slices.Index(DefaultCategories, a), slices.Index(DefaultCategories, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	}
	return strings.Compare(a, b)
}

// CategoryLabel turns a category key such as "cloud-security" into its
// display label "Cloud Security".
func CategoryLabel(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "-", " "))
}
