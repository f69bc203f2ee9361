package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration resolved once at process start.
// Components receive it (or a sub-config) by value; orchestration logic never
// reads ambient environment state.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Harvest    HarvestConfig
	Candidates CandidateConfig
	Runs       RunConfig
	Aggregate  AggregateConfig
	Classifier ClassifierConfig
	Trends     TrendsConfig
	Scheduler  SchedulerConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the signal-store connection settings. An empty URL
// selects the in-memory store (development and tests).
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// AuthConfig holds credentials for the two privileged surfaces: the ingest
// trigger (pre-shared bearer token, open when unset) and operator endpoints
// (JWT issued against a bcrypt-checked password).
type AuthConfig struct {
	IngestToken      string
	JWTSecret        string
	OperatorPassword string
	TokenDuration    time.Duration
}

// HarvestConfig controls the news harvester.
type HarvestConfig struct {
	FeedURLs     []string
	BatchSize    int
	FetchTimeout time.Duration
	MaxKeywords  int
	MinTermLen   int
}

// CandidateConfig controls the candidate lifecycle.
type CandidateConfig struct {
	TTL              time.Duration
	ApproveThreshold float64
}

// RunConfig carries run-orchestration defaults used when a trigger omits them.
type RunConfig struct {
	RootKeywords      []string
	MaxCandidates     int
	CostBudget        float64
	Concurrency       int
	CostPerTask       float64
	MaxDiscoveryDepth int
	Locale            string
	Timeframe         string
	TaskTimeout       time.Duration
}

// AggregateConfig controls trend scoring and alerting.
type AggregateConfig struct {
	SpikeWindow     int
	SpikeThreshold  float64
	SpikeEpsilon    float64
	MediumThreshold float64
	HighThreshold   float64
	DedupWindow     time.Duration
	HotlistSize     int
}

// ClassifierConfig configures the LLM classifier. An empty API key selects the
// rule-based mock classifier.
type ClassifierConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// TrendsConfig configures the trend-measurement probe. An empty base URL
// selects the deterministic mock probe.
type TrendsConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SchedulerConfig holds optional cron expressions; empty disables a job.
type SchedulerConfig struct {
	HarvestCron string
	RunCron     string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultCandidateTTL     = 72 * time.Hour
	defaultApproveThreshold = 0.6

	defaultMaxCandidates     = 10
	defaultCostBudget        = 50.0
	defaultConcurrency       = 4
	defaultCostPerTask       = 1.0
	defaultMaxDiscoveryDepth = 2
	defaultLocale            = "US"
	defaultTimeframe         = "now 7-d"
	defaultTaskTimeout       = 30 * time.Second

	defaultSpikeWindow     = 5
	defaultSpikeThreshold  = 2.0
	defaultSpikeEpsilon    = 0.0001
	defaultMediumThreshold = 3.0
	defaultHighThreshold   = 4.0
	defaultDedupWindow     = time.Hour
	defaultHotlistSize     = 20

	defaultHarvestBatch = 50
	defaultMaxKeywords  = 5
	defaultMinTermLen   = 4
)

// keywordsFile mirrors the optional YAML file pointed at by KEYWORDS_FILE.
type keywordsFile struct {
	RootKeywords     []string `yaml:"root_keywords"`
	Feeds            []string `yaml:"feeds"`
	ApproveThreshold *float64 `yaml:"approve_threshold"`
	SpikeThreshold   *float64 `yaml:"spike_threshold"`
	Locale           string   `yaml:"locale"`
	Timeframe        string   `yaml:"timeframe"`
}

// Load reads configuration from environment variables (and the optional
// keywords file), applying defaults when values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
		},
		Auth: AuthConfig{
			IngestToken:      os.Getenv("INGEST_TOKEN"),
			JWTSecret:        getEnv("JWT_SECRET", "change-this-secret"),
			OperatorPassword: getEnv("OPERATOR_PASSWORD", "operator"),
			TokenDuration:    24 * time.Hour,
		},
		Harvest: HarvestConfig{
			FeedURLs:     splitList(os.Getenv("NEWS_FEEDS")),
			BatchSize:    defaultHarvestBatch,
			FetchTimeout: 30 * time.Second,
			MaxKeywords:  defaultMaxKeywords,
			MinTermLen:   defaultMinTermLen,
		},
		Candidates: CandidateConfig{
			TTL:              defaultCandidateTTL,
			ApproveThreshold: defaultApproveThreshold,
		},
		Runs: RunConfig{
			MaxCandidates:     defaultMaxCandidates,
			CostBudget:        defaultCostBudget,
			Concurrency:       defaultConcurrency,
			CostPerTask:       defaultCostPerTask,
			MaxDiscoveryDepth: defaultMaxDiscoveryDepth,
			Locale:            defaultLocale,
			Timeframe:         defaultTimeframe,
			TaskTimeout:       defaultTaskTimeout,
		},
		Aggregate: AggregateConfig{
			SpikeWindow:     defaultSpikeWindow,
			SpikeThreshold:  defaultSpikeThreshold,
			SpikeEpsilon:    defaultSpikeEpsilon,
			MediumThreshold: defaultMediumThreshold,
			HighThreshold:   defaultHighThreshold,
			DedupWindow:     defaultDedupWindow,
			HotlistSize:     defaultHotlistSize,
		},
		Classifier: ClassifierConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Trends: TrendsConfig{
			BaseURL: os.Getenv("TRENDS_API_URL"),
			APIKey:  os.Getenv("TRENDS_API_KEY"),
			Timeout: defaultTaskTimeout,
		},
		Scheduler: SchedulerConfig{
			HarvestCron: os.Getenv("HARVEST_CRON"),
			RunCron:     os.Getenv("RUN_CRON"),
		},
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("CANDIDATE_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid CANDIDATE_TTL_HOURS: must be a positive integer")
		}
		cfg.Candidates.TTL = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("RUN_COST_BUDGET"); v != "" {
		budget, err := strconv.ParseFloat(v, 64)
		if err != nil || budget <= 0 {
			return Config{}, fmt.Errorf("invalid RUN_COST_BUDGET: must be a positive number")
		}
		cfg.Runs.CostBudget = budget
	}

	if v := os.Getenv("RUN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid RUN_CONCURRENCY: must be a positive integer")
		}
		cfg.Runs.Concurrency = n
	}

	if v := os.Getenv("RUN_MAX_CANDIDATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid RUN_MAX_CANDIDATES: must be a non-negative integer")
		}
		cfg.Runs.MaxCandidates = n
	}

	if v := os.Getenv("MAX_DISCOVERY_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid MAX_DISCOVERY_DEPTH: must be a non-negative integer")
		}
		cfg.Runs.MaxDiscoveryDepth = n
	}

	if path := os.Getenv("KEYWORDS_FILE"); path != "" {
		if err := cfg.mergeKeywordsFile(path); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func (c *Config) mergeKeywordsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read keywords file: %w", err)
	}

	var kf keywordsFile
	if err := yaml.Unmarshal(raw, &kf); err != nil {
		return fmt.Errorf("parse keywords file: %w", err)
	}

	if len(kf.RootKeywords) > 0 {
		c.Runs.RootKeywords = kf.RootKeywords
	}
	if len(kf.Feeds) > 0 {
		c.Harvest.FeedURLs = kf.Feeds
	}
	if kf.ApproveThreshold != nil {
		c.Candidates.ApproveThreshold = *kf.ApproveThreshold
	}
	if kf.SpikeThreshold != nil {
		c.Aggregate.SpikeThreshold = *kf.SpikeThreshold
	}
	if kf.Locale != "" {
		c.Runs.Locale = kf.Locale
	}
	if kf.Timeframe != "" {
		c.Runs.Timeframe = kf.Timeframe
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
