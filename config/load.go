package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SCRAPER_MAX_PAGES.
const EnvPrefix = "SCRAPER"

// Load builds a Config from defaults, an optional config file and SCRAPER_*
// environment variables, in increasing order of precedence. Command-line
// flags are applied by the caller on top of the returned value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg.InputFile = v.GetString("input")
	cfg.OutputDir = v.GetString("output_dir")
	cfg.CheckpointDir = v.GetString("checkpoint_dir")
	cfg.LogDir = v.GetString("log_dir")
	cfg.MaxPages = v.GetInt("max_pages")
	cfg.Parallelism = v.GetInt("parallel")
	cfg.MaxInFlight = v.GetInt("max_in_flight")
	cfg.Backend = strings.ToLower(v.GetString("backend"))
	cfg.Delay = v.GetDuration("delay")
	cfg.RandomDelay = v.GetDuration("random_delay")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.MaxRetries = v.GetInt("max_retries")
	cfg.RetryBackoff = v.GetDuration("retry_backoff")
	cfg.RetryBackoffMax = v.GetDuration("retry_backoff_max")
	cfg.UserAgents = stringList(v, "user_agents")
	cfg.ProxyURL = v.GetString("proxy_url")
	cfg.AllowedDomains = stringList(v, "allowed_domains")
	cfg.PartNames = stringList(v, "part_names")
	cfg.PartContains = stringList(v, "part_contains")
	cfg.StreamFormat = strings.ToLower(v.GetString("stream_format"))
	cfg.PostgresDSN = v.GetString("postgres_dsn")
	cfg.CheckpointStore = strings.ToLower(v.GetString("checkpoint_store"))
	cfg.RedisAddr = v.GetString("redis_addr")
	cfg.RedisPassword = v.GetString("redis_password")
	cfg.RedisDB = v.GetInt("redis_db")
	cfg.CacheSize = v.GetInt("cache_size")
	cfg.MetricsAddr = v.GetString("metrics_addr")
	cfg.Verbose = v.GetBool("verbose")
	cfg.RespectRobotsTxt = v.GetBool("respect_robots")
	cfg.SiteURL = v.GetString("site_url")
	cfg.MinYear = v.GetInt("min_year")
	cfg.CursorDir = v.GetString("cursor_dir")
	cfg.Headless = v.GetBool("headless")

	return cfg, nil
}

// SplitList splits a comma-separated value, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// stringList reads a list key. Environment values arrive as one string and
// are split on commas, since entries such as user agents contain spaces.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return SplitList(s)
	}
	return v.GetStringSlice(key)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("input", cfg.InputFile)
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("checkpoint_dir", cfg.CheckpointDir)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("parallel", cfg.Parallelism)
	v.SetDefault("max_in_flight", cfg.MaxInFlight)
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("delay", cfg.Delay)
	v.SetDefault("random_delay", cfg.RandomDelay)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_backoff", cfg.RetryBackoff)
	v.SetDefault("retry_backoff_max", cfg.RetryBackoffMax)
	v.SetDefault("user_agents", cfg.UserAgents)
	v.SetDefault("proxy_url", cfg.ProxyURL)
	v.SetDefault("allowed_domains", cfg.AllowedDomains)
	v.SetDefault("part_names", cfg.PartNames)
	v.SetDefault("part_contains", cfg.PartContains)
	v.SetDefault("stream_format", cfg.StreamFormat)
	v.SetDefault("postgres_dsn", cfg.PostgresDSN)
	v.SetDefault("checkpoint_store", cfg.CheckpointStore)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_password", cfg.RedisPassword)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("cache_size", cfg.CacheSize)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("respect_robots", cfg.RespectRobotsTxt)
	v.SetDefault("site_url", cfg.SiteURL)
	v.SetDefault("min_year", cfg.MinYear)
	v.SetDefault("cursor_dir", cfg.CursorDir)
	v.SetDefault("headless", cfg.Headless)
}
