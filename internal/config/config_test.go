package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AIDAILY_DB_DRIVER", "AIDAILY_DB_PATH", "AIDAILY_DB_DSN", "AIDAILY_REDIS_ADDR",
		"AIDAILY_LOG_LEVEL", "SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Threshold != 0.65 {
		t.Fatalf("threshold = %v, want 0.65", cfg.Cluster.Threshold)
	}
	if cfg.Cluster.ParseWindow() != 72*time.Hour {
		t.Fatalf("window = %v", cfg.Cluster.ParseWindow())
	}
	if cfg.Summarize.Limit != 50 || cfg.Summarize.MaxTargets != 2 {
		t.Fatalf("summarize defaults = %+v", cfg.Summarize)
	}
	if cfg.Schedule.ParseInterval() != 24*time.Hour {
		t.Fatalf("interval = %v", cfg.Schedule.ParseInterval())
	}
	if cfg.Ingest.ParseTimeout() != 30*time.Second {
		t.Fatalf("ingest timeout = %v", cfg.Ingest.ParseTimeout())
	}
	if len(cfg.Sources) == 0 {
		t.Fatal("expected default sources")
	}
	if cfg.LLM.APIKey != "" {
		t.Fatal("api key should be empty without env")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
database:
  driver: sqlite
  path: /tmp/x.db
cluster:
  threshold: 0.8
  window: 48h
schedule:
  interval: bogus
sources:
  - name: Only
    type: blog
    feed_url: https://example.com/feed
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Threshold != 0.8 || cfg.Cluster.ParseWindow() != 48*time.Hour {
		t.Fatalf("cluster = %+v", cfg.Cluster)
	}
	if cfg.Schedule.ParseInterval() != 24*time.Hour {
		t.Fatalf("bad interval should fall back, got %v", cfg.Schedule.ParseInterval())
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "Only" {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "sk-ant" {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cluster:\n  threshold: 1.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected threshold validation error")
	}

	t.Setenv("AIDAILY_DB_DRIVER", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
