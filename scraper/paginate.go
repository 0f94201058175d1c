package scraper

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-parts/models"
	"github.com/aluiziolira/go-scrape-parts/parser"
)

const pageParam = "currentpage"

// PageFetcher is the transport contract the paginator depends on.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Paginator walks ?currentpage=N for one listing source until a page yields
// no records, a fetch fails, or the page ceiling is reached.
type Paginator struct {
	fetcher      PageFetcher
	metrics      *Metrics
	logger       *slog.Logger
	runTimestamp string
}

// NewPaginator builds a paginator over fetcher.
func NewPaginator(fetcher PageFetcher, metrics *Metrics, logger *slog.Logger, runTimestamp string) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{fetcher: fetcher, metrics: metrics, logger: logger, runTimestamp: runTimestamp}
}

// PageURL returns the URL of the given 1-indexed page of base.
func PageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + pageParam + "=" + strconv.Itoa(page)
}

// Paginate fetches pages of baseURL sequentially. A failed fetch ends
// pagination with whatever was collected so far; an empty page is the
// authoritative end of data.
func (p *Paginator) Paginate(ctx context.Context, baseURL string, app *models.InterchangeOption, maxPages int) *models.RunResult {
	return p.paginate(ctx, baseURL, app, maxPages, nil)
}

// paginate is Paginate with an optional already-fetched first page.
func (p *Paginator) paginate(ctx context.Context, baseURL string, app *models.InterchangeOption, maxPages int, first *Page) *models.RunResult {
	result := models.EmptyRunResult()
	log := p.logger.With(slog.String("source", baseURL))
	pc := parser.PageContext{Application: app, RunTimestamp: p.runTimestamp}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			log.Warn("pagination interrupted", slog.Int("page", page))
			break
		}
		pageURL := PageURL(baseURL, page)

		var fetched *Page
		if page == 1 && first != nil {
			fetched = first
		} else {
			var err error
			log.Info("fetching page", slog.Int("page", page), slog.String("url", pageURL))
			fetched, err = p.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				log.Warn("pagination stopped on fetch failure",
					slog.Int("page", page),
					slog.Int("records", len(result.Records)),
					slog.Any("error", err),
				)
				break
			}
		}

		result.PagesFetched++
		result.BytesTransferred += fetched.Size
		p.metrics.ObservePage(fetched.Size)

		parsed, err := parser.Parse(fetched.Body, pc)
		if err != nil {
			log.Warn("pagination stopped on unparseable page", slog.Int("page", page), slog.Any("error", err))
			break
		}
		log.Info("page parsed",
			slog.Int("page", page),
			slog.String("layout", parsed.Layout.String()),
			slog.Int("records", len(parsed.Records)),
			slog.Int64("bytes", fetched.Size),
		)
		if len(parsed.Records) == 0 {
			break
		}

		result.Records = append(result.Records, parsed.Records...)
		p.metrics.AddItems(len(parsed.Records))

		if page == maxPages {
			log.Warn("pagination hit page ceiling", slog.Int("max_pages", maxPages))
		}
	}

	result.Finalize()
	return result
}
