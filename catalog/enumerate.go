package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aluiziolira/go-scrape-parts/checkpoint"
)

// Part is a part type offered for a vehicle; Slug is the selector value.
type Part struct {
	Name string
	Slug string
}

// Source lists the vehicle selector's cascading options.
type Source interface {
	Years(ctx context.Context) ([]string, error)
	Makes(ctx context.Context, year string) ([]string, error)
	Models(ctx context.Context, year, vehicleMake string) ([]string, error)
	Parts(ctx context.Context, year, vehicleMake, model string) ([]Part, error)
}

// LinkSink receives enumerated rows.
type LinkSink interface {
	WriteLinks(links []Link) error
}

// EnumerateStats summarizes an enumeration run.
type EnumerateStats struct {
	Years        int
	Makes        int
	SkippedMakes int
	Models       int
	Links        int
	ZeroRows     int
}

// Enumerator walks year, make, model and part selectors and emits one row
// per part, saving a year/make cursor after each finished make.
type Enumerator struct {
	source       Source
	sink         LinkSink
	cursor       *checkpoint.CursorStore
	siteURL      string
	minYear      int
	runTimestamp string
	logger       *slog.Logger
}

// NewEnumerator builds an enumerator. cursor may be nil to disable resume.
func NewEnumerator(source Source, sink LinkSink, cursor *checkpoint.CursorStore, siteURL string, minYear int, runTimestamp string, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{
		source:       source,
		sink:         sink,
		cursor:       cursor,
		siteURL:      siteURL,
		minYear:      minYear,
		runTimestamp: runTimestamp,
		logger:       logger,
	}
}

// Run enumerates everything from the saved cursor onward. The cursor is
// cleared only when the whole walk completes.
func (e *Enumerator) Run(ctx context.Context) (EnumerateStats, error) {
	var stats EnumerateStats

	cur, resumed, err := e.loadCursor()
	if err != nil {
		return stats, err
	}
	if resumed {
		e.logger.Info("resuming from cursor", slog.String("year", cur.Year), slog.String("make", cur.Make))
	}

	years, err := e.source.Years(ctx)
	if err != nil {
		return stats, fmt.Errorf("list years: %w", err)
	}
	years = e.eligibleYears(years)
	e.logger.Info("found years", slog.Int("count", len(years)))

	for _, year := range years {
		if cur.SkipYear(year) {
			e.logger.Info("skipping year, already processed", slog.String("year", year))
			continue
		}
		stats.Years++

		makes, err := e.source.Makes(ctx, year)
		if err != nil {
			return stats, fmt.Errorf("list makes for %s: %w", year, err)
		}
		e.logger.Info("found makes", slog.String("year", year), slog.Int("count", len(makes)))

		for _, vehicleMake := range makes {
			if cur.SkipMake(year, vehicleMake) {
				stats.SkippedMakes++
				e.logger.Info("skipping make, already processed", slog.String("year", year), slog.String("make", vehicleMake))
				continue
			}
			if err := e.enumerateMake(ctx, year, vehicleMake, &stats); err != nil {
				return stats, err
			}
			stats.Makes++
			if e.cursor != nil {
				if err := e.cursor.Save(year, vehicleMake); err != nil {
					return stats, fmt.Errorf("save cursor: %w", err)
				}
				e.logger.Info("cursor saved", slog.String("year", year), slog.String("make", vehicleMake))
			}
		}
	}

	e.logger.Info("enumeration finished", slog.Int("links", stats.Links), slog.Int("zero_rows", stats.ZeroRows))
	if e.cursor != nil {
		if err := e.cursor.Clear(); err != nil {
			return stats, err
		}
		e.logger.Info("cursor cleared after successful completion")
	}
	return stats, nil
}

func (e *Enumerator) loadCursor() (checkpoint.Cursor, bool, error) {
	if e.cursor == nil {
		return checkpoint.Cursor{}, false, nil
	}
	cur, ok, err := e.cursor.Load()
	if err != nil {
		return checkpoint.Cursor{}, false, fmt.Errorf("load cursor: %w", err)
	}
	return cur, ok, nil
}

func (e *Enumerator) eligibleYears(years []string) []string {
	var out []string
	for _, y := range years {
		n, err := strconv.Atoi(y)
		if err != nil {
			e.logger.Debug("ignoring non-numeric year option", slog.String("year", y))
			continue
		}
		if n >= e.minYear {
			out = append(out, y)
		}
	}
	return out
}

func (e *Enumerator) enumerateMake(ctx context.Context, year, vehicleMake string, stats *EnumerateStats) error {
	models, err := e.source.Models(ctx, year, vehicleMake)
	if err != nil {
		return fmt.Errorf("list models for %s %s: %w", year, vehicleMake, err)
	}
	e.logger.Info("found models", slog.String("year", year), slog.String("make", vehicleMake), slog.Int("count", len(models)))

	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Models++
		log := e.logger.With(slog.String("year", year), slog.String("make", vehicleMake), slog.String("model", model))

		parts, err := e.source.Parts(ctx, year, vehicleMake, model)
		if err != nil {
			log.Error("part selector failed, writing zero row", slog.Any("error", err))
		}
		if err != nil || len(parts) == 0 {
			if err := e.sink.WriteLinks([]Link{e.zeroRow(year, vehicleMake, model)}); err != nil {
				return err
			}
			stats.ZeroRows++
			continue
		}

		links := make([]Link, 0, len(parts))
		for _, p := range parts {
			links = append(links, Link{
				RunTimestamp: e.runTimestamp,
				Year:         year,
				Make:         vehicleMake,
				Model:        model,
				PartName:     p.Name,
				PartSlug:     p.Slug,
				URL:          CatalogURL(e.siteURL, vehicleMake, year, model, p.Slug),
				LinkFound:    true,
				PartCount:    len(parts),
			})
		}
		if err := e.sink.WriteLinks(links); err != nil {
			return err
		}
		stats.Links += len(links)
		log.Info("parts found", slog.Int("count", len(parts)))
	}
	return nil
}

func (e *Enumerator) zeroRow(year, vehicleMake, model string) Link {
	return Link{RunTimestamp: e.runTimestamp, Year: year, Make: vehicleMake, Model: model}
}
