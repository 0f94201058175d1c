package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/semaphore"

	"github.com/aluiziolira/go-scrape-parts/config"
)

const sinkKey = "fetch_sink"

// Limiter admits at most N simultaneous fetches across every Fetcher that
// shares it, regardless of which unit or worker issued them.
type Limiter struct {
	sem  *semaphore.Weighted
	size int64
}

// NewLimiter builds a limiter with n slots.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Size is the configured ceiling.
func (l *Limiter) Size() int {
	return int(l.size)
}

// Page is a successfully fetched response body.
type Page struct {
	URL        string
	Body       []byte
	Size       int64
	StatusCode int
}

// Deps are the process-wide collaborators shared by every fetch session.
type Deps struct {
	Limiter *Limiter
	Metrics *Metrics
	Stats   *Stats
	Logger  *slog.Logger
}

func (d Deps) withDefaults(cfg *config.Config) Deps {
	if d.Limiter == nil {
		d.Limiter = NewLimiter(cfg.MaxInFlight)
	}
	if d.Stats == nil {
		d.Stats = NewStats()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// Fetcher issues GET requests through a colly collector with per-attempt
// user agent rotation, an optional fixed proxy and bounded retries.
// Each Fetcher is one transport session: its own collector, connection pool
// and cookie jar.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	deps      Deps

	sleep func(context.Context, time.Duration) error

	handlersOnce sync.Once
}

type fetchSink struct {
	body   []byte
	status int
	err    error
}

// NewFetcher builds a fetch session configured from cfg.
func NewFetcher(cfg *config.Config, deps Deps) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgents[0]),
	)
	if len(cfg.AllowedDomains) > 0 {
		collector.AllowedDomains = cfg.AllowedDomains
	}

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	if cfg.ProxyURL != "" {
		if err := collector.SetProxy(cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.MaxInFlight,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		deps:      deps.withDefaults(cfg),
		sleep:     sleepContext,
	}
	f.configureHandlers()
	return f, nil
}

func (f *Fetcher) configureHandlers() {
	f.handlersOnce.Do(func() {
		f.collector.OnResponse(func(r *colly.Response) {
			if sink, ok := r.Ctx.GetAny(sinkKey).(*fetchSink); ok {
				sink.body = r.Body
				sink.status = r.StatusCode
			}
		})
		f.collector.OnError(func(r *colly.Response, err error) {
			if r == nil || r.Ctx == nil {
				return
			}
			if sink, ok := r.Ctx.GetAny(sinkKey).(*fetchSink); ok {
				sink.status = r.StatusCode
				sink.err = err
			}
		})
	})
}

// Fetch retrieves url, retrying transient failures up to MaxRetries attempts
// with a linear backoff between them. HTTP status failures are returned
// immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	log := f.deps.Logger
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := f.attempt(ctx, url)
		if err == nil {
			log.Info("fetch attempt",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.String("outcome", "ok"),
				slog.Int64("bytes", page.Size),
			)
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		category := errorTypeLabel(err)
		f.deps.Stats.recordError(category)
		f.deps.Metrics.IncError(category)

		retryable := isRetryable(err) && !permanent(err)
		log.Warn("fetch attempt",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("outcome", category),
			slog.Bool("retryable", retryable),
			slog.Any("error", err),
		)
		if !retryable {
			f.deps.Stats.recordFailure(url)
			return nil, err
		}
		if attempt == f.cfg.MaxRetries {
			break
		}

		f.deps.Stats.recordRetry()
		f.deps.Metrics.IncRetries()
		if err := f.sleep(ctx, f.backoff(attempt)); err != nil {
			return nil, err
		}
	}

	f.deps.Stats.recordFailure(url)
	return nil, fmt.Errorf("fetch %s: %w: %w", url, ErrRetriesExhausted, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, url string) (*Page, error) {
	if err := f.deps.Limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer f.deps.Limiter.Release()
	f.deps.Metrics.AddInFlight(1)
	defer f.deps.Metrics.AddInFlight(-1)

	sink := &fetchSink{}
	cctx := colly.NewContext()
	cctx.Put(sinkKey, sink)

	hdr := http.Header{}
	hdr.Set("User-Agent", f.userAgent())
	hdr.Set("Accept", "text/html")
	hdr.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	err := f.collector.Request(http.MethodGet, url, nil, cctx, hdr)
	f.deps.Metrics.ObserveDuration(time.Since(start))
	f.deps.Stats.recordRequest()

	if err == nil && sink.err != nil {
		err = sink.err
	}
	if err != nil {
		classified := classifyError(err, sink.status)
		f.deps.Metrics.IncRequest(errorTypeLabel(classified))
		return nil, classified
	}

	f.deps.Metrics.IncRequest("ok")
	return &Page{
		URL:        url,
		Body:       sink.body,
		Size:       int64(len(sink.body)),
		StatusCode: sink.status,
	}, nil
}

// backoff returns the pause after the given 1-indexed failed attempt.
func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := f.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	delay := base * time.Duration(attempt)
	if ceiling := f.cfg.RetryBackoffMax; ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (f *Fetcher) userAgent() string {
	agents := f.cfg.UserAgents
	if len(agents) == 1 {
		return agents[0]
	}
	return agents[rand.Intn(len(agents))]
}

// permanent reports collector-side rejections that no retry can fix.
func permanent(err error) bool {
	return errors.Is(err, colly.ErrForbiddenDomain) ||
		errors.Is(err, colly.ErrMissingURL) ||
		errors.Is(err, colly.ErrRobotsTxtBlocked)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats accumulates request outcomes across all sessions of a run.
type Stats struct {
	mu           sync.Mutex
	requests     int
	retries      int
	errors       int
	failedURLs   []string
	errorsByType map[string]int
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{errorsByType: make(map[string]int)}
}

func (s *Stats) recordRequest() {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

func (s *Stats) recordRetry() {
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
}

func (s *Stats) recordError(category string) {
	s.mu.Lock()
	s.errors++
	s.errorsByType[category]++
	s.mu.Unlock()
}

func (s *Stats) recordFailure(url string) {
	s.mu.Lock()
	s.failedURLs = append(s.failedURLs, url)
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests     int
	Retries      int
	Errors       int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	failed := make([]string, len(s.failedURLs))
	copy(failed, s.failedURLs)
	byType := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		byType[k] = v
	}
	return StatsSnapshot{
		Requests:     s.requests,
		Retries:      s.retries,
		Errors:       s.errors,
		FailedURLs:   failed,
		ErrorsByType: byType,
	}
}
