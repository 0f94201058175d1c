package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aluiziolira/go-scrape-parts/models"
	"github.com/aluiziolira/go-scrape-parts/parser"
)

// ErrNoMatchingApplication means the unit named an interchange description
// that none of the live application options match.
var ErrNoMatchingApplication = errors.New("scraper: no application matched interchange description")

// Expander resolves a catalog URL into its application listings and
// paginates each of them.
type Expander struct {
	fetcher   PageFetcher
	paginator *Paginator
	maxPages  int
	logger    *slog.Logger
}

// NewExpander builds an expander sharing fetcher with paginator.
func NewExpander(fetcher PageFetcher, paginator *Paginator, maxPages int, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{fetcher: fetcher, paginator: paginator, maxPages: maxPages, logger: logger}
}

// Expand fetches catalogURL once to discover application options.
//
// With no options the catalog URL itself is paginated, reusing the fetched
// body as page 1. With options and a description only options whose
// normalized text equals the normalized description are followed; if none
// match, an empty result is returned with ErrNoMatchingApplication. With
// options and no description every option is followed. Counters from all
// followed options are summed.
func (e *Expander) Expand(ctx context.Context, catalogURL, description string) (*models.RunResult, error) {
	log := e.logger.With(slog.String("catalog_url", catalogURL))

	base, err := e.fetcher.Fetch(ctx, catalogURL)
	if err != nil {
		log.Warn("catalog page unavailable, paginating base URL directly", slog.Any("error", err))
		return e.paginator.Paginate(ctx, catalogURL, nil, e.maxPages), nil
	}

	options, err := parser.ParseInterchangeOptions(base.Body, catalogURL)
	if err != nil {
		log.Warn("application facet unreadable", slog.Any("error", err))
		options = nil
	}
	if len(options) == 0 {
		return e.paginator.paginate(ctx, catalogURL, nil, e.maxPages, base), nil
	}

	if description != "" {
		options = MatchOptions(options, description)
		if len(options) == 0 {
			log.Warn("no application matched interchange description",
				slog.String("ic_description", description),
			)
			return models.EmptyRunResult(), ErrNoMatchingApplication
		}
	}

	merged := models.EmptyRunResult()
	for _, opt := range options {
		opt := opt
		log.Info("scraping application",
			slog.String("application_id", opt.ID),
			slog.String("application_text", opt.Text),
			slog.String("application_url", opt.URL),
		)
		merged.Merge(e.paginator.Paginate(ctx, opt.URL, &opt, e.maxPages))
	}
	merged.Finalize()
	return merged, nil
}

// MatchOptions keeps the options whose normalized text equals the
// normalized description.
func MatchOptions(options []models.InterchangeOption, description string) []models.InterchangeOption {
	target := parser.NormalizeText(description)
	var matched []models.InterchangeOption
	for _, opt := range options {
		if parser.NormalizeText(opt.Text) == target {
			matched = append(matched, opt)
		}
	}
	return matched
}
