package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds scraper configuration.
type Config struct {
	InputFile       string
	OutputDir       string
	CheckpointDir   string
	LogDir          string
	MaxPages        int
	Parallelism     int
	MaxInFlight     int
	Backend         string // pool or gather
	Delay           time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgents      []string
	ProxyURL        string
	AllowedDomains  []string

	// Part filter applied to enumeration rows. Both empty admits every row.
	PartNames    []string
	PartContains []string

	StreamFormat    string // none, csv, json, dual, or postgres
	PostgresDSN     string
	CheckpointStore string // file or redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheSize       int
	MetricsAddr     string

	Verbose          bool
	RespectRobotsTxt bool

	// Enumeration settings.
	SiteURL   string
	MinYear   int
	CursorDir string
	Headless  bool

	// Per-run identity, stamped once at startup and threaded everywhere.
	RunID        string
	RunTimestamp string
	RunDate      string
}

// DefaultConfig returns conservative defaults for the catalog target.
func DefaultConfig() *Config {
	cfg := &Config{
		InputFile:       "output/ic_parts_data_combined_with_links_from_autopartsearch.csv",
		OutputDir:       "output",
		LogDir:          "logs",
		MaxPages:        1000,
		Parallelism:     5,
		MaxInFlight:     15,
		Backend:         "pool",
		Timeout:         15 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    2 * time.Second,
		RetryBackoffMax: 30 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/121.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
		},
		PartNames:       []string{"engine assembly"},
		PartContains:    []string{"transmission"},
		StreamFormat:    "none",
		CheckpointStore: "file",
		RedisAddr:       "localhost:6379",
		CacheSize:       4096,
		SiteURL:         "https://www.autopartsearch.com",
		MinYear:         2010,
		CursorDir:       "checkpoints",
		Headless:        true,
	}
	cfg.StampRun(time.Now())
	return cfg
}

// StampRun fixes the run identity from t and a fresh run id.
func (c *Config) StampRun(t time.Time) {
	c.RunID = uuid.NewString()
	c.RunTimestamp = t.Format("20060102150405")
	c.RunDate = t.Format("20060102")
}

// RunRoot is the per-day directory holding final output and unit checkpoints.
func (c *Config) RunRoot() string {
	return filepath.Join(c.OutputDir, "parts_scrape_"+c.RunDate)
}

// FinalOutputPath is where the aggregated JSON document is written.
func (c *Config) FinalOutputPath() string {
	return filepath.Join(c.RunRoot(), "final", "parts_data_"+c.RunDate+".json")
}

// UnitCheckpointDir returns the directory for per-unit checkpoint files.
func (c *Config) UnitCheckpointDir() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return filepath.Join(c.RunRoot(), "temp")
}

// LogFilePath is the per-run log file, empty when file logging is off.
func (c *Config) LogFilePath() string {
	if c.LogDir == "" {
		return ""
	}
	return filepath.Join(c.LogDir, "partsearch_run_"+c.RunTimestamp+".log")
}

// StreamOutputPath is the base path for streaming sinks.
func (c *Config) StreamOutputPath() string {
	ext := ".csv"
	if c.StreamFormat == "json" {
		ext = ".jsonl"
	}
	return filepath.Join(c.RunRoot(), "stream", "parts_data_"+c.RunTimestamp+ext)
}

// CursorFilePath is the enumeration year/make cursor for the current day.
func (c *Config) CursorFilePath() string {
	return filepath.Join(c.CursorDir, "checkpoint_"+c.RunDate+".txt")
}

// LinksOutputPath is where enumeration writes its crawl-unit CSV.
func (c *Config) LinksOutputPath() string {
	return filepath.Join(c.OutputDir, "autopartsearch_all_links_"+c.RunTimestamp+".csv")
}

// ValidateEnumerate checks the settings used by the enumeration crawl.
func (c *Config) ValidateEnumerate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	parsed, err := url.Parse(c.SiteURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("site URL must be absolute: %q", c.SiteURL)
	}
	if c.MinYear <= 0 {
		return fmt.Errorf("min year must be positive")
	}
	if c.CursorDir == "" {
		return fmt.Errorf("cursor dir cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max in-flight must be positive")
	}
	if c.Backend != "pool" && c.Backend != "gather" {
		return fmt.Errorf("backend must be pool or gather")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}
	for _, ua := range c.UserAgents {
		if strings.TrimSpace(ua) == "" {
			return fmt.Errorf("user agent cannot be empty")
		}
	}
	if c.ProxyURL != "" {
		parsed, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("proxy URL must include a host")
		}
	}
	switch c.StreamFormat {
	case "none", "csv", "json", "dual":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn is required for the postgres stream")
		}
	default:
		return fmt.Errorf("stream format must be none, csv, json, dual, or postgres")
	}
	switch c.CheckpointStore {
	case "file":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis addr is required for the redis checkpoint store")
		}
	default:
		return fmt.Errorf("checkpoint store must be file or redis")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.RunTimestamp == "" || c.RunDate == "" {
		return fmt.Errorf("run timestamp is not set")
	}

	return nil
}
