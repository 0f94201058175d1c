package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-parts/config"
	"github.com/aluiziolira/go-scrape-parts/internal/fixture"
	"github.com/aluiziolira/go-scrape-parts/models"
)

const catalogURL = "http://parts.test/2004/honda/accord/engine-assembly"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryBackoff = 0
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.Timeout = 2 * time.Second
	cfg.MaxPages = 10
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport, deps Deps) *Scraper {
	t.Helper()
	s, err := NewScraper(cfg, deps)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.fetcher.collector.WithTransport(transport)
	return s
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func countingResponder(calls *int32, next httpmock.Responder) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(calls, 1)
		return next(req)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestBackoffLinearAndCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 2 * time.Second
	cfg.RetryBackoffMax = 5 * time.Second

	f, err := NewFetcher(cfg, Deps{})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if got := f.backoff(1); got != 2*time.Second {
		t.Fatalf("backoff(1)=%v, want 2s", got)
	}
	if got := f.backoff(2); got != 4*time.Second {
		t.Fatalf("backoff(2)=%v, want 4s", got)
	}
	if got := f.backoff(4); got != cfg.RetryBackoffMax {
		t.Fatalf("backoff(4)=%v, want %v", got, cfg.RetryBackoffMax)
	}
}

func TestFetchLogsEveryAttemptAtInfo(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	var calls int32
	transport.RegisterResponder(http.MethodGet, catalogURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
		}
		return httpmock.NewStringResponse(200, fixture.EmptyPage(fixture.Facets{})), nil
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := newTestScraper(t, cfg, transport, Deps{Logger: logger})
	if _, err := s.fetcher.Fetch(context.Background(), catalogURL); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var outcomes []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["msg"] != "fetch attempt" {
			continue
		}
		if entry["url"] != catalogURL {
			t.Fatalf("fetch attempt url=%v, want %s", entry["url"], catalogURL)
		}
		outcomes = append(outcomes, fmt.Sprintf("%v:%v:%v", entry["level"], entry["attempt"], entry["outcome"]))
	}
	if len(outcomes) != 2 || outcomes[1] != "INFO:2:ok" {
		t.Fatalf("fetch attempt lines=%v, want a failed attempt then INFO:2:ok", outcomes)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		base string
		page int
		want string
	}{
		{base: catalogURL, page: 1, want: catalogURL},
		{base: catalogURL, page: 3, want: catalogURL + "?currentpage=3"},
		{base: catalogURL + "?application=12", page: 2, want: catalogURL + "?application=12&currentpage=2"},
	}
	for _, tt := range tests {
		if got := PageURL(tt.base, tt.page); got != tt.want {
			t.Fatalf("PageURL(%q, %d)=%q, want %q", tt.base, tt.page, got, tt.want)
		}
	}
}

func TestFetchRetriesUntilLastAttemptSucceeds(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	var calls int32
	transport.RegisterResponder(http.MethodGet, catalogURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < int32(cfg.MaxRetries) {
			return nil, &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
		}
		return httpmock.NewStringResponse(200, fixture.EmptyPage(fixture.Facets{})), nil
	})

	stats := NewStats()
	s := newTestScraper(t, cfg, transport, Deps{Stats: stats})
	page, err := s.fetcher.Fetch(context.Background(), catalogURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.Size == 0 {
		t.Fatalf("page size=0, want body bytes")
	}
	if got := atomic.LoadInt32(&calls); got != int32(cfg.MaxRetries) {
		t.Fatalf("calls=%d, want %d", got, cfg.MaxRetries)
	}
	snap := stats.Snapshot()
	if snap.Retries != cfg.MaxRetries-1 {
		t.Fatalf("retries=%d, want %d", snap.Retries, cfg.MaxRetries-1)
	}
	if snap.ErrorsByType["connection"] != cfg.MaxRetries-1 {
		t.Fatalf("connection errors=%d, want %d", snap.ErrorsByType["connection"], cfg.MaxRetries-1)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	var calls int32
	transport.RegisterResponder(http.MethodGet, catalogURL,
		countingResponder(&calls, httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})))

	var slept []time.Duration
	stats := NewStats()
	s := newTestScraper(t, cfg, transport, Deps{Stats: stats})
	s.fetcher.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := s.fetcher.Fetch(context.Background(), catalogURL)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err=%v, want ErrRetriesExhausted", err)
	}
	if got := atomic.LoadInt32(&calls); got != int32(cfg.MaxRetries) {
		t.Fatalf("calls=%d, want exactly %d", got, cfg.MaxRetries)
	}
	if len(slept) != cfg.MaxRetries-1 {
		t.Fatalf("sleeps=%d, want %d (no pause after the last attempt)", len(slept), cfg.MaxRetries-1)
	}
	if snap := stats.Snapshot(); len(snap.FailedURLs) != 1 || snap.FailedURLs[0] != catalogURL {
		t.Fatalf("failed urls=%v, want [%s]", snap.FailedURLs, catalogURL)
	}
}

func TestFetchDoesNotRetryHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusBadGateway, expected: "http_status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()
			transport := httpmock.NewMockTransport()
			var calls int32
			transport.RegisterResponder(http.MethodGet, catalogURL,
				countingResponder(&calls, httpmock.NewStringResponder(tt.status, "")))

			stats := NewStats()
			s := newTestScraper(t, cfg, transport, Deps{Stats: stats})
			_, err := s.fetcher.Fetch(context.Background(), catalogURL)
			if err == nil {
				t.Fatalf("fetch succeeded, want error for status %d", tt.status)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label=%q, want %q", got, tt.expected)
			}
			if got := atomic.LoadInt32(&calls); got != 1 {
				t.Fatalf("calls=%d, want 1", got)
			}
			if got := stats.Snapshot().ErrorsByType[tt.expected]; got != 1 {
				t.Fatalf("errors[%s]=%d, want 1", tt.expected, got)
			}
		})
	}
}

func TestPaginationStopsOnFirstEmptyPage(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	var calls int32
	pages := map[int]string{
		1: fixture.ListPage(fixture.Rows(0, 2), fixture.Facets{}),
		2: fixture.ListPage(fixture.Rows(2, 2), fixture.Facets{}),
		3: fixture.ListPage(fixture.Rows(4, 1), fixture.Facets{}),
		4: fixture.EmptyPage(fixture.Facets{}),
		5: fixture.ListPage(fixture.Rows(5, 2), fixture.Facets{}),
	}
	for n, body := range pages {
		transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, n), countingResponder(&calls, htmlResponder(body)))
	}

	s := newTestScraper(t, cfg, transport, Deps{})
	result := s.expander.paginator.Paginate(context.Background(), catalogURL, nil, cfg.MaxPages)

	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Fatalf("fetches=%d, want 4", got)
	}
	if len(result.Records) != 5 {
		t.Fatalf("records=%d, want 5", len(result.Records))
	}
	if result.PagesFetched != 4 {
		t.Fatalf("pages=%d, want 4", result.PagesFetched)
	}
}

func TestPaginationRespectsPageCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2
	transport := httpmock.NewMockTransport()

	var calls int32
	for n := 1; n <= 3; n++ {
		transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, n),
			countingResponder(&calls, htmlResponder(fixture.ListPage(fixture.Rows(n*10, 3), fixture.Facets{}))))
	}

	s := newTestScraper(t, cfg, transport, Deps{})
	result := s.expander.paginator.Paginate(context.Background(), catalogURL, nil, cfg.MaxPages)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("fetches=%d, want 2", got)
	}
	if len(result.Records) != 6 {
		t.Fatalf("records=%d, want 6", len(result.Records))
	}
}

func TestPaginationKeepsPartialResultOnFetchFailure(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, 1),
		htmlResponder(fixture.ListPage(fixture.Rows(0, 3), fixture.Facets{})))
	transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, 2), httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	s := newTestScraper(t, cfg, transport, Deps{})
	result := s.expander.paginator.Paginate(context.Background(), catalogURL, nil, cfg.MaxPages)
	if len(result.Records) != 3 {
		t.Fatalf("records=%d, want 3", len(result.Records))
	}
	if result.PagesFetched != 1 {
		t.Fatalf("pages=%d, want 1", result.PagesFetched)
	}
}

func TestProcessUnitEndToEnd(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	first := fixture.ListPage(fixture.Rows(0, 3), fixture.Facets{Yards: []fixture.Yard{{ID: "AB12", Miles: 42}}})
	var calls int32
	transport.RegisterResponder(http.MethodGet, catalogURL, countingResponder(&calls, htmlResponder(first)))
	transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, 2),
		countingResponder(&calls, htmlResponder(fixture.EmptyPage(fixture.Facets{}))))

	metrics := NewMetrics()
	s := newTestScraper(t, cfg, transport, Deps{Metrics: metrics})
	unit := models.CrawlUnit{
		Year:     "2004",
		Make:     "Honda",
		Model:    "Accord",
		PartName: "Engine Assembly",
		PartSlug: "engine-assembly",
		URL:      catalogURL,
	}

	result, err := s.ProcessUnit(context.Background(), unit)
	if err != nil {
		t.Fatalf("process unit: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records=%d, want 3", len(result.Records))
	}
	if result.PagesFetched != 2 {
		t.Fatalf("pages=%d, want 2", result.PagesFetched)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("fetches=%d, want 2 (base page reused as page 1)", got)
	}
	if result.BytesTransferred <= 0 || result.AvgPageSize != result.BytesTransferred/2 {
		t.Fatalf("bytes=%d avg=%v, want positive bytes averaged over 2 pages", result.BytesTransferred, result.AvgPageSize)
	}

	rec := result.Records[0]
	if rec.SourceMake != "Honda" || rec.SourceYear != "2004" || rec.SourceModel != "Accord" || rec.SourcePartSlug != "engine-assembly" {
		t.Fatalf("provenance=%+v, want unit fields stamped", rec)
	}
	if rec.SourceURL != catalogURL {
		t.Fatalf("source url=%q, want %q", rec.SourceURL, catalogURL)
	}
	if rec.DistanceMiles == nil || *rec.DistanceMiles != 42 {
		t.Fatalf("distance=%v, want 42", rec.DistanceMiles)
	}
	if rec.RunTimestamp != cfg.RunTimestamp {
		t.Fatalf("run timestamp=%q, want %q", rec.RunTimestamp, cfg.RunTimestamp)
	}
}

func TestProcessUnitFollowsOnlyMatchingApplication(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	sedanURL := catalogURL + "?application=1"
	wagonURL := catalogURL + "?application=2"
	base := fixture.EmptyPage(fixture.Facets{Applications: []fixture.Application{
		{Text: "Sedan (12)", Href: sedanURL},
		{Text: "Wagon (4)", Href: wagonURL},
	}})

	var wagonCalls int32
	transport.RegisterResponder(http.MethodGet, catalogURL, htmlResponder(base))
	transport.RegisterResponder(http.MethodGet, sedanURL, htmlResponder(fixture.TablePage(fixture.Rows(0, 2), fixture.Facets{})))
	transport.RegisterResponder(http.MethodGet, PageURL(sedanURL, 2), htmlResponder(fixture.EmptyPage(fixture.Facets{})))
	transport.RegisterResponder(http.MethodGet, wagonURL,
		countingResponder(&wagonCalls, htmlResponder(fixture.TablePage(fixture.Rows(5, 1), fixture.Facets{}))))

	s := newTestScraper(t, cfg, transport, Deps{})
	unit := models.CrawlUnit{Year: "2004", Make: "Volvo", Model: "V70", PartSlug: "engine-assembly", URL: catalogURL, InterchangeDescription: "  SEDAN "}

	result, err := s.ProcessUnit(context.Background(), unit)
	if err != nil {
		t.Fatalf("process unit: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records=%d, want 2", len(result.Records))
	}
	if got := atomic.LoadInt32(&wagonCalls); got != 0 {
		t.Fatalf("wagon fetches=%d, want 0", got)
	}
	for _, rec := range result.Records {
		if rec.ApplicationURL == nil || *rec.ApplicationURL != sedanURL {
			t.Fatalf("application url=%v, want %s", rec.ApplicationURL, sedanURL)
		}
		if rec.ApplicationText == nil || *rec.ApplicationText != "Sedan (12)" {
			t.Fatalf("application text=%v, want Sedan (12)", rec.ApplicationText)
		}
	}
}

func TestProcessUnitFollowsEveryApplicationWithoutDescription(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	sedanURL := catalogURL + "?application=1"
	wagonURL := catalogURL + "?application=2"
	base := fixture.EmptyPage(fixture.Facets{Applications: []fixture.Application{
		{Text: "Sedan (12)", Href: sedanURL},
		{Text: "Wagon (4)", Href: wagonURL},
	}})
	bodies := []string{
		fixture.TablePage(fixture.Rows(0, 2), fixture.Facets{}),
		fixture.EmptyPage(fixture.Facets{}),
		fixture.TablePage(fixture.Rows(5, 1), fixture.Facets{}),
		fixture.EmptyPage(fixture.Facets{}),
	}

	var baseCalls, basePageCalls int32
	transport.RegisterResponder(http.MethodGet, catalogURL, countingResponder(&baseCalls, htmlResponder(base)))
	transport.RegisterResponder(http.MethodGet, PageURL(catalogURL, 2),
		countingResponder(&basePageCalls, htmlResponder(fixture.EmptyPage(fixture.Facets{}))))
	transport.RegisterResponder(http.MethodGet, sedanURL, htmlResponder(bodies[0]))
	transport.RegisterResponder(http.MethodGet, PageURL(sedanURL, 2), htmlResponder(bodies[1]))
	transport.RegisterResponder(http.MethodGet, wagonURL, htmlResponder(bodies[2]))
	transport.RegisterResponder(http.MethodGet, PageURL(wagonURL, 2), htmlResponder(bodies[3]))

	s := newTestScraper(t, cfg, transport, Deps{})
	unit := models.CrawlUnit{Year: "2004", Make: "Volvo", Model: "V70", PartSlug: "engine-assembly", URL: catalogURL}

	result, err := s.ProcessUnit(context.Background(), unit)
	if err != nil {
		t.Fatalf("process unit: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records=%d, want 3", len(result.Records))
	}
	if result.PagesFetched != 4 {
		t.Fatalf("pages fetched=%d, want 4", result.PagesFetched)
	}
	var wantBytes int64
	for _, b := range bodies {
		wantBytes += int64(len(b))
	}
	if result.BytesTransferred != wantBytes {
		t.Fatalf("bytes=%d, want %d", result.BytesTransferred, wantBytes)
	}
	if got := atomic.LoadInt32(&baseCalls); got != 1 {
		t.Fatalf("base fetches=%d, want 1", got)
	}
	if got := atomic.LoadInt32(&basePageCalls); got != 0 {
		t.Fatalf("base URL paginated %d times, want 0", got)
	}

	perApplication := map[string]int{}
	for _, rec := range result.Records {
		if rec.ApplicationURL == nil {
			t.Fatalf("record %+v has no application url", rec)
		}
		perApplication[*rec.ApplicationURL]++
	}
	if perApplication[sedanURL] != 2 || perApplication[wagonURL] != 1 {
		t.Fatalf("records per application=%v", perApplication)
	}
}

func TestProcessUnitMismatchIsEmptyAndNonFatal(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	base := fixture.EmptyPage(fixture.Facets{Applications: []fixture.Application{
		{Text: "Sedan (12)", Href: catalogURL + "?application=1"},
	}})
	transport.RegisterResponder(http.MethodGet, catalogURL, htmlResponder(base))

	s := newTestScraper(t, cfg, transport, Deps{})
	result, err := s.ProcessUnit(context.Background(), models.CrawlUnit{URL: catalogURL, InterchangeDescription: "Coupe"})
	if err != nil {
		t.Fatalf("process unit: %v", err)
	}
	if len(result.Records) != 0 || result.PagesFetched != 0 {
		t.Fatalf("result=%+v, want empty", result)
	}
	if _, err := s.expander.Expand(context.Background(), catalogURL, "Coupe"); !errors.Is(err, ErrNoMatchingApplication) {
		t.Fatalf("expand err=%v, want ErrNoMatchingApplication", err)
	}
}

func TestProcessUnitCanceledReturnsError(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, catalogURL,
		htmlResponder(fixture.ListPage(fixture.Rows(0, 1), fixture.Facets{})))

	s := newTestScraper(t, cfg, transport, Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ProcessUnit(ctx, models.CrawlUnit{URL: catalogURL}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestLimiterBoundsConcurrentFetches(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 2

	var inFlight, peak int32
	responder := func(req *http.Request) (*http.Response, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return httpmock.NewStringResponse(200, "<html></html>"), nil
	}

	deps := Deps{Limiter: NewLimiter(cfg.MaxInFlight), Stats: NewStats()}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, `=~^http://parts\.test/`, responder)
		s := newTestScraper(t, cfg, transport, deps)
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(i, j int) {
				defer wg.Done()
				if _, err := s.fetcher.Fetch(context.Background(), fmt.Sprintf("http://parts.test/p/%d/%d", i, j)); err != nil {
					t.Errorf("fetch: %v", err)
				}
			}(i, j)
		}
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > int32(cfg.MaxInFlight) {
		t.Fatalf("peak in-flight=%d, want <= %d", got, cfg.MaxInFlight)
	}
	if got := deps.Stats.Snapshot().Requests; got != 12 {
		t.Fatalf("requests=%d, want 12", got)
	}
}

func TestMatchOptionsNormalizes(t *testing.T) {
	options := []models.InterchangeOption{
		{Text: "Sedan (12)", ID: "1"},
		{Text: "Wagon  (4)", ID: "2"},
		{Text: "sedan", ID: "3"},
	}
	got := MatchOptions(options, "SEDAN")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("matched=%+v, want ids 1 and 3", got)
	}
}
