package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/go-scrape-parts/catalog"
	"github.com/aluiziolira/go-scrape-parts/checkpoint"
	"github.com/aluiziolira/go-scrape-parts/config"
	"github.com/aluiziolira/go-scrape-parts/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	def := config.DefaultConfig()

	configPath := flag.String("config", "", "Optional config file (yaml, toml or json)")
	siteURL := flag.String("site-url", def.SiteURL, "Catalog site root")
	minYear := flag.Int("min-year", def.MinYear, "Oldest model year to enumerate")
	outputDir := flag.String("output-dir", def.OutputDir, "Directory for the links CSV")
	cursorDir := flag.String("cursor-dir", def.CursorDir, "Directory for the year/make cursor")
	headless := flag.Bool("headless", def.Headless, "Run the browser headless")
	timeout := flag.Duration("timeout", def.Timeout, "Per-selector wait timeout")
	logDir := flag.String("log-dir", def.LogDir, "Directory for the run log file; empty disables it")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "site-url":
			cfg.SiteURL = *siteURL
		case "min-year":
			cfg.MinYear = *minYear
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "cursor-dir":
			cfg.CursorDir = *cursorDir
		case "headless":
			cfg.Headless = *headless
		case "timeout":
			cfg.Timeout = *timeout
		case "log-dir":
			cfg.LogDir = *logDir
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.ValidateEnumerate(); err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userAgent := ""
	if len(cfg.UserAgents) > 0 {
		userAgent = cfg.UserAgents[0]
	}
	source, err := catalog.NewBrowserSource(ctx, catalog.BrowserOptions{
		SiteURL:   cfg.SiteURL,
		UserAgent: userAgent,
		Headless:  cfg.Headless,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("starting browser", slog.Any("error", err))
		return 1
	}
	defer source.Close()

	links, err := catalog.NewLinkWriter(cfg.LinksOutputPath())
	if err != nil {
		logger.Error("creating links csv", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := links.Close(); err != nil {
			logger.Error("close links csv", slog.Any("error", err))
		}
	}()

	cursor := checkpoint.NewCursorStore(cfg.CursorFilePath())
	logger.Info("starting enumeration",
		slog.String("site_url", cfg.SiteURL),
		slog.Int("min_year", cfg.MinYear),
		slog.String("output", cfg.LinksOutputPath()),
		slog.String("cursor", cursor.Path()),
	)

	e := catalog.NewEnumerator(source, links, cursor, cfg.SiteURL, cfg.MinYear, cfg.RunTimestamp, logger)
	stats, err := e.Run(ctx)
	if err != nil {
		logger.Error("enumeration stopped; rerun to resume from the cursor",
			slog.Any("error", err),
			slog.Int("rows_written", links.Rows()),
		)
		return 1
	}

	fmt.Println("--------------------------------------------------")
	fmt.Println("Enumeration complete")
	fmt.Printf("  Years:         %d\n", stats.Years)
	fmt.Printf("  Makes:         %d (skipped %d)\n", stats.Makes, stats.SkippedMakes)
	fmt.Printf("  Models:        %d\n", stats.Models)
	fmt.Printf("  Part links:    %d\n", stats.Links)
	fmt.Printf("  Zero rows:     %d\n", stats.ZeroRows)
	fmt.Printf("  Output file:   %s\n", cfg.LinksOutputPath())
	fmt.Println("--------------------------------------------------")
	return 0
}
