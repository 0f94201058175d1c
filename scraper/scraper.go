package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aluiziolira/go-scrape-parts/config"
	"github.com/aluiziolira/go-scrape-parts/models"
)

// Scraper processes one crawl unit end-to-end on its own fetch session.
type Scraper struct {
	cfg      *config.Config
	fetcher  *Fetcher
	expander *Expander
	Metrics  *Metrics
	logger   *slog.Logger
}

// NewScraper builds a scraper session. Sessions created from the same deps
// share the admission limiter, stats and metrics.
func NewScraper(cfg *config.Config, deps Deps) (*Scraper, error) {
	deps = deps.withDefaults(cfg)
	fetcher, err := NewFetcher(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("initialise fetcher: %w", err)
	}
	paginator := NewPaginator(fetcher, deps.Metrics, deps.Logger, cfg.RunTimestamp)
	return &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		expander: NewExpander(fetcher, paginator, cfg.MaxPages, deps.Logger),
		Metrics:  deps.Metrics,
		logger:   deps.Logger,
	}, nil
}

// ProcessUnit expands and paginates unit, stamps provenance onto every
// record and reports the unit's runtime. It only returns an error when ctx
// ends mid-unit, in which case the partial result must not be kept.
func (s *Scraper) ProcessUnit(ctx context.Context, unit models.CrawlUnit) (*models.RunResult, error) {
	start := time.Now()
	log := s.logger.With(
		slog.String("make", unit.Make),
		slog.String("year", unit.Year),
		slog.String("model", unit.Model),
		slog.String("part_slug", unit.PartSlug),
	)

	result, err := s.expander.Expand(ctx, unit.URL, unit.InterchangeDescription)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("unit interrupted: %w", ctxErr)
	}

	status := "scraped"
	switch {
	case errors.Is(err, ErrNoMatchingApplication):
		status = "mismatch"
	case err != nil:
		return nil, err
	case len(result.Records) == 0 && result.PagesFetched == 0:
		status = "unreachable"
		log.Warn("unit yielded no records: no page could be fetched", slog.String("url", unit.URL))
	case len(result.Records) == 0:
		status = "empty"
		log.Warn("unit yielded no records: first page had no listings", slog.String("url", unit.URL))
	}

	for _, rec := range result.Records {
		rec.StampSource(unit)
	}
	elapsed := time.Since(start).Seconds()
	result.RuntimeSeconds = math.Round(elapsed*100) / 100
	result.Finalize()
	s.Metrics.ObserveUnit(status)

	secondsPerPage := 0.0
	if result.PagesFetched > 0 {
		secondsPerPage = math.Round(elapsed/float64(result.PagesFetched)*100) / 100
	}
	log.Info("finished unit",
		slog.String("status", status),
		slog.Int("records", len(result.Records)),
		slog.Int("pages", result.PagesFetched),
		slog.Int64("bytes", result.BytesTransferred),
		slog.Float64("seconds", result.RuntimeSeconds),
		slog.Float64("seconds_per_page", secondsPerPage),
	)
	return result, nil
}
