package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("KEYWORDS_FILE", "")
	t.Setenv("CANDIDATE_TTL_HOURS", "")
	t.Setenv("RUN_COST_BUDGET", "")
	t.Setenv("RUN_CONCURRENCY", "")
	t.Setenv("RUN_MAX_CANDIDATES", "")
	t.Setenv("MAX_DISCOVERY_DEPTH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("Level = %v, want info", cfg.Logging.Level)
	}
	if cfg.Candidates.TTL.Hours() != 72 {
		t.Errorf("TTL = %v, want 72h", cfg.Candidates.TTL)
	}
	if cfg.Runs.MaxDiscoveryDepth != 2 {
		t.Errorf("MaxDiscoveryDepth = %d, want 2", cfg.Runs.MaxDiscoveryDepth)
	}
	if cfg.Aggregate.SpikeThreshold != 2.0 {
		t.Errorf("SpikeThreshold = %v, want 2.0", cfg.Aggregate.SpikeThreshold)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"bad ttl", "CANDIDATE_TTL_HOURS", "-1"},
		{"bad budget", "RUN_COST_BUDGET", "zero"},
		{"bad concurrency", "RUN_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoadKeywordsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	content := `root_keywords:
  - bitcoin
  - solar energy
feeds:
  - https://example.com/rss
approve_threshold: 0.75
locale: GB
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KEYWORDS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Runs.RootKeywords) != 2 || cfg.Runs.RootKeywords[0] != "bitcoin" {
		t.Errorf("RootKeywords = %v", cfg.Runs.RootKeywords)
	}
	if len(cfg.Harvest.FeedURLs) != 1 {
		t.Errorf("FeedURLs = %v", cfg.Harvest.FeedURLs)
	}
	if cfg.Candidates.ApproveThreshold != 0.75 {
		t.Errorf("ApproveThreshold = %v, want 0.75", cfg.Candidates.ApproveThreshold)
	}
	if cfg.Runs.Locale != "GB" {
		t.Errorf("Locale = %s, want GB", cfg.Runs.Locale)
	}
}

func TestLoadKeywordsFileMissing(t *testing.T) {
	t.Setenv("KEYWORDS_FILE", "/nonexistent/keywords.yaml")
	if _, err := Load(); err == nil {
		t.Error("Load() should fail when the keywords file is missing")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example/rss , https://b.example/rss ,")
	if len(got) != 2 || got[0] != "https://a.example/rss" || got[1] != "https://b.example/rss" {
		t.Errorf("splitList() = %v", got)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}
