package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// UnitProcessor scrapes one unit on its own transport session.
type UnitProcessor interface {
	ProcessUnit(ctx context.Context, unit models.CrawlUnit) (*models.RunResult, error)
}

// Job handles the unit at index i using session.
type Job func(ctx context.Context, session UnitProcessor, i int)

// Backend decides how unit jobs are scheduled onto sessions.
type Backend interface {
	Name() string
	Run(ctx context.Context, n int, job Job) error
}

// Backend names accepted by NewBackend.
const (
	BackendPool   = "pool"
	BackendGather = "gather"
)

// NewBackend builds the named backend. newSession is called once per pool
// worker, or once in total for gather.
func NewBackend(name string, workers int, newSession func() (UnitProcessor, error)) (Backend, error) {
	switch name {
	case BackendPool, "":
		if workers <= 0 {
			workers = 1
		}
		sessions := make([]UnitProcessor, 0, workers)
		for i := 0; i < workers; i++ {
			s, err := newSession()
			if err != nil {
				return nil, fmt.Errorf("create session %d: %w", i, err)
			}
			sessions = append(sessions, s)
		}
		return NewPoolBackend(sessions), nil
	case BackendGather:
		s, err := newSession()
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return NewGatherBackend(s, workers), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// PoolBackend runs a fixed set of workers, each bound to its own session,
// pulling unit indices from a shared queue.
type PoolBackend struct {
	sessions []UnitProcessor
}

// NewPoolBackend starts one worker per session.
func NewPoolBackend(sessions []UnitProcessor) *PoolBackend {
	return &PoolBackend{sessions: sessions}
}

// Name implements Backend.
func (b *PoolBackend) Name() string { return BackendPool }

// Run dispatches indices 0..n-1 in order and waits for every worker.
// Cancelling ctx stops dispatch; jobs already started observe ctx.
func (b *PoolBackend) Run(ctx context.Context, n int, job Job) error {
	if len(b.sessions) == 0 {
		return errors.New("pool backend has no sessions")
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for _, session := range b.sessions {
		wg.Add(1)
		go func(session UnitProcessor) {
			defer wg.Done()
			for i := range queue {
				job(ctx, session, i)
			}
		}(session)
	}

dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()
	return ctx.Err()
}

// GatherBackend launches one goroutine per unit, all sharing a single
// session. limit bounds how many run at once; zero means unbounded, leaving
// the transport limiter as the only ceiling.
type GatherBackend struct {
	session UnitProcessor
	limit   int
}

// NewGatherBackend builds a gather backend over session.
func NewGatherBackend(session UnitProcessor, limit int) *GatherBackend {
	return &GatherBackend{session: session, limit: limit}
}

// Name implements Backend.
func (b *GatherBackend) Name() string { return BackendGather }

// Run starts every job and waits for all of them.
func (b *GatherBackend) Run(ctx context.Context, n int, job Job) error {
	g, gctx := errgroup.WithContext(ctx)
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			job(gctx, b.session, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
