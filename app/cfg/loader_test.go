package cfg

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validRaw() rawCfg {
	return rawCfg{
		FeedsDir:      "./feeds",
		ProxyURL:      "https://api.allorigins.win/raw?url=",
		FetchTimeout:  30,
		SourceTimeout: 60,
		LookupTimeout: 5,
		UserAgent:     "RSS Mosaic/1.0",
		Timezone:      "UTC",
	}
}

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestResolve(t *testing.T) {
	raw := validRaw()
	raw.Headers = map[string]string{"X-Token": "abc"}
	raw.ImageLookups = []string{"none", "page", "page"}
	raw.Concurrency = 4

	cfg, err := resolve(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("Expected fetch timeout 30s, got %v", cfg.FetchTimeout)
	}
	if cfg.SourceTimeout != time.Minute {
		t.Errorf("Expected source timeout 1m, got %v", cfg.SourceTimeout)
	}
	if cfg.LookupTimeout != 5*time.Second {
		t.Errorf("Expected lookup timeout 5s, got %v", cfg.LookupTimeout)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Concurrency)
	}
	if len(cfg.ImageLookups) != 1 || cfg.ImageLookups[0] != LookupPage {
		t.Errorf("Expected lookups [page], got %v", cfg.ImageLookups)
	}
	if cfg.Headers["X-Token"] != "abc" {
		t.Errorf("Expected header X-Token 'abc', got '%s'", cfg.Headers["X-Token"])
	}
	if cfg.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*rawCfg)
		want   string
	}{
		{"zero fetch timeout", func(r *rawCfg) { r.FetchTimeout = 0 }, "fetch timeout"},
		{"zero source timeout", func(r *rawCfg) { r.SourceTimeout = 0 }, "source timeout"},
		{"zero lookup timeout", func(r *rawCfg) { r.LookupTimeout = 0 }, "lookup timeout"},
		{"negative concurrency", func(r *rawCfg) { r.Concurrency = -1 }, "concurrency"},
		{"invalid header", func(r *rawCfg) { r.Headers = map[string]string{"Bad Header": "x"} }, "header"},
		{"unsplash without key", func(r *rawCfg) { r.ImageLookups = []string{"unsplash"} }, "unsplash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.modify(&raw)

			_, err := resolve(raw)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning '%s', got '%v'", tt.want, err)
			}
		})
	}
}

func TestParserReadsFlagsAndEnv(t *testing.T) {
	t.Setenv("CONCURRENCY", "3")
	t.Setenv("FEED_HEADERS", "X-One:1,X-Two:2")

	parser := NewParser()
	if _, err := parser.ParseArgs([]string{"--feeds-dir", "/tmp/feeds", "--category", "tech", "--category", "news"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.FeedsDir != "/tmp/feeds" {
		t.Errorf("Expected feeds dir '/tmp/feeds', got '%s'", cfg.FeedsDir)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[1] != "news" {
		t.Errorf("Expected categories [tech news], got %v", cfg.Categories)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", cfg.Concurrency)
	}
	if cfg.Headers["X-Two"] != "2" {
		t.Errorf("Expected header X-Two '2', got %v", cfg.Headers)
	}
	if cfg.ProxyURL != "https://api.allorigins.win/raw?url=" {
		t.Errorf("Expected default proxy URL, got '%s'", cfg.ProxyURL)
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	path := filepath.Join(t.TempDir(), "logs", "mosaic.log")
	closeLog, err := SetupLogger(&Cfg{Debug: true, LogFile: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	slog.Debug("Logger test", "key", "value")
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug level to be enabled")
	}
	if err := closeLog(); err != nil {
		t.Fatalf("Expected no error closing log, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got %v", err)
	}
	if !strings.Contains(string(data), "key=value") {
		t.Errorf("Expected log file to contain record, got '%s'", data)
	}
}
