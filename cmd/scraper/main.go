package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-parts/catalog"
	"github.com/aluiziolira/go-scrape-parts/checkpoint"
	"github.com/aluiziolira/go-scrape-parts/config"
	"github.com/aluiziolira/go-scrape-parts/logging"
	"github.com/aluiziolira/go-scrape-parts/models"
	"github.com/aluiziolira/go-scrape-parts/pipeline"
	"github.com/aluiziolira/go-scrape-parts/scraper"
	"github.com/aluiziolira/go-scrape-parts/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	def := config.DefaultConfig()

	configPath := flag.String("config", "", "Optional config file (yaml, toml or json)")
	input := flag.String("input", def.InputFile, "Enumeration CSV with crawl units")
	outputDir := flag.String("output-dir", def.OutputDir, "Root directory for run output")
	checkpointDir := flag.String("checkpoint-dir", "", "Per-unit checkpoint directory (default <output-dir>/parts_scrape_<date>/temp)")
	logDir := flag.String("log-dir", def.LogDir, "Directory for the run log file; empty disables it")
	maxPages := flag.Int("pages", def.MaxPages, "Maximum result pages per application")
	parallelism := flag.Int("parallel", def.Parallelism, "Number of concurrent units")
	maxInFlight := flag.Int("max-in-flight", def.MaxInFlight, "Process-wide ceiling on concurrent fetches")
	backend := flag.String("backend", def.Backend, "Scheduler backend: pool or gather")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	timeout := flag.Duration("timeout", def.Timeout, "Per-request timeout")
	maxRetries := flag.Int("max-retries", def.MaxRetries, "Maximum attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(def.RetryBackoff/time.Millisecond), "Retry backoff step (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(def.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	proxyURL := flag.String("proxy", "", "Proxy URL for every request")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	parts := flag.String("parts", strings.Join(def.PartNames, ","), "Comma-separated part names to keep (exact, case-insensitive)")
	partContains := flag.String("part-contains", strings.Join(def.PartContains, ","), "Comma-separated substrings of part names to keep")
	stream := flag.String("stream", def.StreamFormat, "Streaming sink: none, csv, json, dual, or postgres")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres DSN for the postgres stream")
	store := flag.String("checkpoint-store", def.CheckpointStore, "Checkpoint store: file or redis")
	redisAddr := flag.String("redis-addr", def.RedisAddr, "Redis address for the redis checkpoint store")
	cacheSize := flag.Int("cache-size", def.CacheSize, "Checkpoint LRU cache entries")
	metricsAddr := flag.String("metrics-addr", "", "Status server listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputFile = *input
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "checkpoint-dir":
			cfg.CheckpointDir = *checkpointDir
		case "log-dir":
			cfg.LogDir = *logDir
		case "pages":
			cfg.MaxPages = *maxPages
		case "parallel":
			cfg.Parallelism = *parallelism
		case "max-in-flight":
			cfg.MaxInFlight = *maxInFlight
		case "backend":
			cfg.Backend = strings.ToLower(*backend)
		case "delay":
			cfg.Delay = time.Duration(*delayMs) * time.Millisecond
		case "random-delay":
			cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
		case "timeout":
			cfg.Timeout = *timeout
		case "max-retries":
			cfg.MaxRetries = *maxRetries
		case "retry-backoff":
			cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
		case "retry-backoff-max":
			cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
		case "proxy":
			cfg.ProxyURL = *proxyURL
		case "respect-robots":
			cfg.RespectRobotsTxt = *respectRobots
		case "parts":
			cfg.PartNames = config.SplitList(*parts)
		case "part-contains":
			cfg.PartContains = config.SplitList(*partContains)
		case "stream":
			cfg.StreamFormat = strings.ToLower(*stream)
		case "postgres-dsn":
			cfg.PostgresDSN = *postgresDSN
		case "checkpoint-store":
			cfg.CheckpointStore = strings.ToLower(*store)
		case "redis-addr":
			cfg.RedisAddr = *redisAddr
		case "cache-size":
			cfg.CacheSize = *cacheSize
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger, closeLog, err := logging.Setup(logging.Options{
		Verbose:  cfg.Verbose,
		RunID:    cfg.RunID,
		FilePath: cfg.LogFilePath(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	units, loadStats, err := catalog.LoadUnits(cfg.InputFile, catalog.PartFilter{Exact: cfg.PartNames, Contains: cfg.PartContains})
	if err != nil {
		logger.Error("loading crawl units", slog.Any("error", err))
		return 1
	}
	logger.Info("loaded crawl units",
		slog.String("input", cfg.InputFile),
		slog.Int("rows", loadStats.Rows),
		slog.Int("no_link", loadStats.NoLink),
		slog.Int("duplicates", loadStats.Duplicates),
		slog.Int("filtered", loadStats.Filtered),
		slog.Int("units", loadStats.Admitted),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, waiting for in-flight units to finish")
	}()

	deps := scraper.Deps{
		Limiter: scraper.NewLimiter(cfg.MaxInFlight),
		Metrics: scraper.NewMetrics(),
		Stats:   scraper.NewStats(),
		Logger:  logger,
	}
	b, err := pipeline.NewBackend(cfg.Backend, cfg.Parallelism, func() (pipeline.UnitProcessor, error) {
		s, err := scraper.NewScraper(cfg, deps)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		logger.Error("initialising scraper sessions", slog.Any("error", err))
		return 1
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("opening checkpoint store", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	var sink *pipeline.Pipeline
	var writer pipeline.OutputWriter
	if cfg.StreamFormat != "none" {
		writer, err = createWriter(cfg)
		if err != nil {
			logger.Error("creating stream writer", slog.Any("error", err))
			return 1
		}
		sink = pipeline.NewPipeline(writer, logger)
		sink.Start(2)
		if cfg.Verbose {
			sink.StartMetricsReporting(10 * time.Second)
		}
	}

	runner := pipeline.NewRunner(b, st, pipeline.RunnerOptions{
		Stream:   sink,
		Observer: deps.Metrics,
		Logger:   logger,
	})

	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, deps.Metrics.Registry, runner.Progress(), logger)
		if err := srv.Start(); err != nil {
			logger.Error("starting status server", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := srv.Shutdown(5 * time.Second); err != nil {
				logger.Error("status server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	logger.Info("starting scrape",
		slog.String("run_timestamp", cfg.RunTimestamp),
		slog.Int("units", len(units)),
		slog.Int("workers", cfg.Parallelism),
		slog.Int("max_in_flight", cfg.MaxInFlight),
		slog.String("backend", b.Name()),
		slog.String("checkpoint_store", cfg.CheckpointStore),
	)

	agg, runErr := runner.Run(ctx, units)

	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Error("stream shutdown failed", slog.Any("error", err))
		}
		if err := writer.Validate(); err != nil {
			logger.Warn("stream output validation failed", slog.Any("error", err))
		}
		if err := writer.Close(); err != nil {
			logger.Error("close stream writer", slog.Any("error", err))
		}
	}

	if err := pipeline.WriteFinal(cfg.FinalOutputPath(), agg.Records); err != nil {
		logger.Error("writing final output", slog.Any("error", err))
		return 1
	}
	if runErr != nil {
		logger.Warn("run interrupted, final output holds finished units only; rerun to resume from checkpoints",
			slog.Any("error", runErr),
			slog.Int("units_done", int(runner.Progress().Snapshot().UnitsDone)),
			slog.Int("records", len(agg.Records)),
			slog.String("output", cfg.FinalOutputPath()),
		)
		return 130
	}

	stats := deps.Stats.Snapshot()
	agg.RequestCount = stats.Requests
	agg.RetryCount = stats.Retries
	agg.ErrorCount = stats.Errors
	agg.ErrorsByType = stats.ErrorsByType
	agg.FailedURLs = stats.FailedURLs

	logger.Info("scrape finished",
		slog.Int("records", len(agg.Records)),
		slog.Int("pages", agg.TotalPages),
		slog.Int64("bytes", agg.TotalBytes),
		slog.Int64("avg_page_size", agg.AvgPageSize()),
		slog.Float64("runtime_seconds", agg.EndTime.Sub(agg.StartTime).Seconds()),
		slog.String("output", cfg.FinalOutputPath()),
	)
	var streamStats *pipeline.StreamStats
	if sink != nil {
		s := sink.Stats()
		streamStats = &s
	}
	printSummary(agg, cfg.FinalOutputPath(), streamStats)
	return 0
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (checkpoint.Store, func(), error) {
	var backend checkpoint.Store
	closeFn := func() {}

	switch cfg.CheckpointStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		backend = checkpoint.NewRedisStore(client, cfg.RunDate)
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Error("close redis", slog.Any("error", err))
			}
		}
		logger.Info("using redis checkpoints", slog.String("addr", cfg.RedisAddr))
	default:
		fs, err := checkpoint.NewFileStore(cfg.UnitCheckpointDir())
		if err != nil {
			return nil, nil, err
		}
		backend = fs
		logger.Info("using file checkpoints", slog.String("dir", fs.Dir()))
	}

	if cfg.CacheSize == 0 {
		return backend, closeFn, nil
	}
	cached, err := checkpoint.NewCachedStore(backend, cfg.CacheSize)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cached, closeFn, nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	if cfg.StreamFormat == "postgres" {
		return pipeline.NewPostgresWriter(context.Background(), cfg.PostgresDSN, cfg.RunID)
	}

	filename := cfg.StreamOutputPath()
	var (
		file pipeline.OutputWriter
		err  error
	)
	switch cfg.StreamFormat {
	case "json":
		file, err = pipeline.NewJSONWriter(filename)
	case "csv":
		file, err = pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		file, err = pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported stream format: %s", cfg.StreamFormat)
	}
	if err != nil || cfg.PostgresDSN == "" {
		return file, err
	}

	pg, err := pipeline.NewPostgresWriter(context.Background(), cfg.PostgresDSN, cfg.RunID)
	if err != nil {
		file.Close()
		return nil, err
	}
	return pipeline.NewFanoutWriter(
		pipeline.Sink{Name: cfg.StreamFormat, Writer: file},
		pipeline.Sink{Name: "postgres", Writer: pg},
	), nil
}

func printSummary(agg *models.Aggregate, outputFile string, stream *pipeline.StreamStats) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	duration := agg.EndTime.Sub(agg.StartTime)
	fmt.Printf("  Units:           %d\n", agg.UnitCount)
	fmt.Printf("  Checkpoint hits: %d\n", agg.CheckpointHits)
	fmt.Printf("  Empty units:     %d\n", agg.EmptyUnits)
	fmt.Printf("  Failed units:    %d\n", agg.FailedUnits)
	fmt.Printf("  Records:         %d\n", len(agg.Records))
	fmt.Printf("  Pages:           %d\n", agg.TotalPages)
	fmt.Printf("  Bytes:           %d\n", agg.TotalBytes)
	fmt.Printf("  Avg page size:   %d\n", agg.AvgPageSize())
	successRate := 0.0
	if agg.RequestCount > 0 {
		successRate = float64(agg.RequestCount-agg.ErrorCount) / float64(agg.RequestCount) * 100
	}
	fmt.Printf("  Requests:        %d (%.2f%% ok)\n", agg.RequestCount, successRate)
	fmt.Printf("  Retries:         %d\n", agg.RetryCount)
	fmt.Printf("  Failed URLs:     %d\n", len(agg.FailedURLs))
	if len(agg.ErrorsByType) > 0 {
		fmt.Printf("  Error types:     %v\n", agg.ErrorsByType)
	}
	if stream != nil {
		fmt.Printf("  Streamed:        %d\n", stream.Written)
		if len(stream.Invalid) > 0 {
			fmt.Printf("  Validation:      %v\n", stream.Invalid)
		}
	}
	fmt.Printf("  Duration:        %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Output file:     %s\n", outputFile)
	fmt.Println(separator)
}
