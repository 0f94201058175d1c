// Package pipeline schedules crawl units, resumes them from checkpoints and
// folds their results into the run output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aluiziolira/go-scrape-parts/checkpoint"
	"github.com/aluiziolira/go-scrape-parts/models"
)

// ErrUnitPanicked wraps a panic recovered while processing a unit.
var ErrUnitPanicked = errors.New("pipeline: unit panicked")

// UnitObserver is notified of every finished unit's status.
type UnitObserver interface {
	ObserveUnit(status string)
}

// RunnerOptions are the optional collaborators of a Runner.
type RunnerOptions struct {
	// Stream receives each unit's records as soon as the unit finishes.
	Stream   *Pipeline
	Observer UnitObserver
	Logger   *slog.Logger
}

// Runner drives every unit through a Backend, consulting the checkpoint
// store first and saving each freshly scraped result.
type Runner struct {
	backend  Backend
	store    checkpoint.Store
	stream   *Pipeline
	observer UnitObserver
	logger   *slog.Logger
	progress *Progress
	locks    keyLocks
}

// NewRunner builds a runner.
func NewRunner(backend Backend, store checkpoint.Store, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		backend:  backend,
		store:    store,
		stream:   opts.Stream,
		observer: opts.Observer,
		logger:   logger,
		progress: &Progress{},
		locks:    keyLocks{m: make(map[string]*refLock)},
	}
}

// Progress exposes live counters.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run processes units and returns their aggregate in input order. A
// cancelled ctx ends the run early with ctx's error; units finished before
// that are checkpointed and included.
func (r *Runner) Run(ctx context.Context, units []models.CrawlUnit) (*models.Aggregate, error) {
	r.progress.begin(len(units))
	agg := NewAggregator(len(units))

	r.logger.Info("dispatching units",
		slog.Int("units", len(units)),
		slog.String("backend", r.backend.Name()),
	)
	runErr := r.backend.Run(ctx, len(units), func(ctx context.Context, session UnitProcessor, i int) {
		r.handle(ctx, session, agg, units, i)
	})

	result := agg.Fold()
	snap := r.progress.Snapshot()
	result.CheckpointHits = int(snap.CheckpointHits)
	result.EmptyUnits = int(snap.EmptyUnits)
	result.FailedUnits = int(snap.FailedUnits)
	if runErr != nil {
		return result, fmt.Errorf("run interrupted: %w", runErr)
	}
	return result, nil
}

func (r *Runner) handle(ctx context.Context, session UnitProcessor, agg *Aggregator, units []models.CrawlUnit, i int) {
	unit := units[i]
	key := checkpoint.UnitKey(unit)
	log := r.logger.With(slog.String("unit_key", key))
	log.Info("starting unit",
		slog.Int("index", i+1),
		slog.Int("total", len(units)),
		slog.String("make", unit.Make),
		slog.String("year", unit.Year),
		slog.String("model", unit.Model),
		slog.String("part_slug", unit.PartSlug),
	)

	unlock := r.locks.lock(key)
	defer unlock()

	if result, ok := r.fromCheckpoint(ctx, key, unit, log); ok {
		if len(result.Records) == 0 {
			log.Warn("unit yielded no records: checkpoint holds an empty result")
		}
		r.finish(i, agg, result, true, "checkpoint", log)
		return
	}

	result, err := r.process(ctx, session, unit)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		log.Warn("unit interrupted, not checkpointed", slog.Any("error", err))
		return
	default:
		log.Error("unit failed, yielding no records", slog.Any("error", err))
		agg.Set(i, models.EmptyRunResult())
		r.progress.unitFailed()
		r.observe("failed")
		return
	}

	if err := r.store.Save(context.WithoutCancel(ctx), key, result); err != nil {
		log.Error("checkpoint save failed", slog.Any("error", err))
	}
	r.finish(i, agg, result, false, "", log)
}

// fromCheckpoint returns the saved result for key. Distinct units can share a
// sanitized key, so a result whose records came from another URL is a miss.
func (r *Runner) fromCheckpoint(ctx context.Context, key string, unit models.CrawlUnit, log *slog.Logger) (*models.RunResult, bool) {
	has, err := r.store.Has(ctx, key)
	if err != nil {
		log.Warn("checkpoint lookup failed, scraping unit", slog.Any("error", err))
		return nil, false
	}
	if !has {
		return nil, false
	}
	result, err := r.store.Load(ctx, key)
	if err != nil {
		log.Warn("checkpoint unreadable, scraping unit", slog.Any("error", err))
		return nil, false
	}
	for _, rec := range result.Records {
		if rec.SourceURL != unit.URL {
			log.Warn("checkpoint belongs to a different unit, scraping unit",
				slog.String("checkpoint_url", rec.SourceURL),
				slog.String("unit_url", unit.URL),
			)
			return nil, false
		}
	}
	log.Info("loaded unit from checkpoint", slog.Int("records", len(result.Records)))
	return result, true
}

func (r *Runner) process(ctx context.Context, session UnitProcessor, unit models.CrawlUnit) (result *models.RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("recovered panic in unit",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			err = fmt.Errorf("%w: %v", ErrUnitPanicked, rec)
		}
	}()
	return session.ProcessUnit(ctx, unit)
}

func (r *Runner) finish(i int, agg *Aggregator, result *models.RunResult, hit bool, status string, log *slog.Logger) {
	agg.Set(i, result)
	r.progress.unitDone(hit, len(result.Records))
	if status != "" {
		r.observe(status)
	}
	if r.stream == nil {
		return
	}
	if err := r.stream.Process(result.Records); err != nil {
		log.Error("stream write failed", slog.Any("error", err))
	}
}

func (r *Runner) observe(status string) {
	if r.observer != nil {
		r.observer.ObserveUnit(status)
	}
}

// keyLocks serializes work on the same unit key.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &refLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
