package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Summarize SummarizeConfig `yaml:"summarize"`
	LLM       LLMConfig       `yaml:"llm"`
	Lease     LeaseConfig     `yaml:"lease"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Sources   []SourceSeed    `yaml:"sources"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// ScheduleConfig configures the recurring pipeline trigger.
type ScheduleConfig struct {
	Interval   string `yaml:"interval"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// ParseInterval returns the trigger interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	return parseDuration(s.Interval, 24*time.Hour)
}

// IngestConfig configures feed fetching.
type IngestConfig struct {
	Timeout     string `yaml:"timeout"`
	UserAgent   string `yaml:"user_agent"`
	Concurrency int    `yaml:"concurrency"`
}

// ParseTimeout returns the per-feed fetch timeout.
func (i IngestConfig) ParseTimeout() time.Duration {
	return parseDuration(i.Timeout, 30*time.Second)
}

// ClusterConfig configures title clustering.
type ClusterConfig struct {
	Threshold float64 `yaml:"threshold"`
	Window    string  `yaml:"window"`
}

// ParseWindow returns the candidate story look-back window.
func (c ClusterConfig) ParseWindow() time.Duration {
	return parseDuration(c.Window, 72*time.Hour)
}

// SummarizeConfig configures the summarization pass.
type SummarizeConfig struct {
	Limit           int `yaml:"limit"`
	MaxTargets      int `yaml:"max_targets"`
	ContextItems    int `yaml:"context_items"`
	ExcerptChars    int `yaml:"excerpt_chars"`
	GenerationItems int `yaml:"generation_items"`
	GenerationChars int `yaml:"generation_chars"`
}

// LLMConfig configures the generative text provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai", "gemini" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
	Timeout  string `yaml:"timeout"`

	BreakerFailures int    `yaml:"breaker_failures"`
	BreakerCooldown string `yaml:"breaker_cooldown"`
}

// ParseTimeout returns the per-request timeout.
func (l LLMConfig) ParseTimeout() time.Duration {
	return parseDuration(l.Timeout, 60*time.Second)
}

// ParseBreakerCooldown returns how long the breaker stays open.
func (l LLMConfig) ParseBreakerCooldown() time.Duration {
	return parseDuration(l.BreakerCooldown, 2*time.Minute)
}

// LeaseConfig configures the pipeline run lease. An empty RedisAddr keeps
// the lease in-process.
type LeaseConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
	TTL           string `yaml:"ttl"`
}

// ParseTTL returns the lease expiry.
func (l LeaseConfig) ParseTTL() time.Duration {
	return parseDuration(l.TTL, 2*time.Hour)
}

// AlertsConfig configures run digest destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook digests.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook digests.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook digests.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Mode  string `yaml:"mode"` // "dev" or "prod"
	Level string `yaml:"level"`
}

// TracingConfig toggles OpenTelemetry spans.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// SourceSeed is a feed registered by `aidaily sources seed`.
type SourceSeed struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	URL        string `yaml:"url"`
	FeedURL    string `yaml:"feed_url"`
	TrustLevel string `yaml:"trust_level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "./aidaily.db"},
		Schedule: ScheduleConfig{Interval: "24h"},
		Ingest: IngestConfig{
			Timeout:     "30s",
			UserAgent:   DefaultUserAgent,
			Concurrency: 4,
		},
		Cluster: ClusterConfig{Threshold: 0.65, Window: "72h"},
		Summarize: SummarizeConfig{
			Limit:           50,
			MaxTargets:      2,
			ContextItems:    3,
			ExcerptChars:    300,
			GenerationItems: 5,
			GenerationChars: 1500,
		},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			Timeout:         "60s",
			BreakerFailures: 5,
			BreakerCooldown: "2m",
		},
		Lease:   LeaseConfig{Key: "aidaily:pipeline", TTL: "2h"},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Mode: "dev", Level: "info"},
		Tracing: TracingConfig{ServiceName: "aidaily"},
		Sources: DefaultSources(),
	}
}

// DefaultUserAgent is sent on feed requests; several publishers reject
// obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"

// DefaultSources is the built-in feed catalogue.
func DefaultSources() []SourceSeed {
	return []SourceSeed{
		{Name: "arXiv cs.AI", Type: "paper", URL: "http://arxiv.org/abs/cs.AI", FeedURL: "http://export.arxiv.org/rss/cs.AI", TrustLevel: "high"},
		{Name: "arXiv cs.CL", Type: "paper", URL: "http://arxiv.org/abs/cs.CL", FeedURL: "http://export.arxiv.org/rss/cs.CL", TrustLevel: "high"},
		{Name: "arXiv cs.LG", Type: "paper", URL: "http://arxiv.org/abs/cs.LG", FeedURL: "http://export.arxiv.org/rss/cs.LG", TrustLevel: "high"},
		{Name: "arXiv cs.CV", Type: "paper", URL: "http://arxiv.org/abs/cs.CV", FeedURL: "http://export.arxiv.org/rss/cs.CV", TrustLevel: "high"},

		{Name: "OpenAI Blog", Type: "blog", URL: "https://openai.com/blog", FeedURL: "https://openai.com/blog/rss.xml", TrustLevel: "high"},
		{Name: "Google DeepMind", Type: "blog", URL: "https://deepmind.google/discover/blog", FeedURL: "https://deepmind.com/blog/feed/basic/", TrustLevel: "high"},
		{Name: "Anthropic", Type: "blog", URL: "https://www.anthropic.com/news", FeedURL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/main/feeds/feed_anthropic_news.xml", TrustLevel: "high"},
		{Name: "Microsoft Research", Type: "blog", URL: "https://www.microsoft.com/en-us/research/blog/", FeedURL: "https://www.microsoft.com/en-us/research/feed/", TrustLevel: "high"},
		{Name: "Google AI Blog", Type: "blog", URL: "https://blog.google/technology/ai/", FeedURL: "https://blog.google/technology/ai/rss", TrustLevel: "high"},
		{Name: "AI2 Blog", Type: "blog", URL: "https://blog.allenai.org/", FeedURL: "https://blog.allenai.org/feed", TrustLevel: "high"},
		{Name: "MIT AI News", Type: "news", URL: "https://news.mit.edu/topic/artificial-intelligence2", FeedURL: "https://news.mit.edu/topic/artificial-intelligence-rss.xml", TrustLevel: "high"},
		{Name: "Stanford HAI", Type: "blog", URL: "https://hai.stanford.edu/news", FeedURL: "https://hai.stanford.edu/news/rss.xml", TrustLevel: "high"},

		{Name: "Hugging Face Blog", Type: "blog", URL: "https://huggingface.co/blog", FeedURL: "https://huggingface.co/blog/feed.xml", TrustLevel: "medium"},
		{Name: "LangChain Blog", Type: "blog", URL: "https://blog.langchain.dev/", FeedURL: "https://blog.langchain.dev/rss/", TrustLevel: "medium"},
		{Name: "Weights & Biases", Type: "blog", URL: "https://wandb.ai/site/blog", FeedURL: "https://wandb.ai/fully-connected/rss.xml", TrustLevel: "medium"},
		{Name: "AWS Machine Learning", Type: "blog", URL: "https://aws.amazon.com/blogs/machine-learning/", FeedURL: "https://aws.amazon.com/blogs/machine-learning/feed/", TrustLevel: "medium"},

		{Name: "Lil'Log (Lilian Weng)", Type: "blog", URL: "https://lilianweng.github.io/lil-log/", FeedURL: "https://lilianweng.github.io/lil-log/feed.xml", TrustLevel: "high"},
		{Name: "Andrej Karpathy", Type: "blog", URL: "https://karpathy.ai/", FeedURL: "https://karpathy.ai/feed.xml", TrustLevel: "high"},
		{Name: "Simon Willison", Type: "blog", URL: "https://simonwillison.net/", FeedURL: "https://simonwillison.net/atom/entries/", TrustLevel: "high"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Cluster.Threshold <= 0 || c.Cluster.Threshold > 1 {
		return fmt.Errorf("cluster.threshold must be in (0, 1], got %v", c.Cluster.Threshold)
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIDAILY_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("AIDAILY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AIDAILY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Driver = "postgres"
	}
	if v := os.Getenv("AIDAILY_REDIS_ADDR"); v != "" {
		cfg.Lease.RedisAddr = v
	}
	if v := os.Getenv("AIDAILY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	// Only the first key present wins, in this order.
	if cfg.LLM.APIKey != "" {
		return
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "openai"
		return
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		if cfg.LLM.Provider != "gemini" {
			cfg.LLM.Provider = "gemini"
			cfg.LLM.Model = "gemini-2.0-flash"
		}
		return
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		if cfg.LLM.Provider != "anthropic" {
			cfg.LLM.Provider = "anthropic"
			cfg.LLM.Model = "claude-sonnet-4-20250514"
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
