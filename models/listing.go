// Package models defines data structures for the scraper.
package models

import "time"

// CrawlUnit is one (make, year, model, part) combination to be scraped end-to-end.
type CrawlUnit struct {
	Year     string `json:"year"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	PartName string `json:"part_name"`
	PartSlug string `json:"part_slug"`
	URL      string `json:"url"`
	// InterchangeDescription selects which application to follow when the
	// catalog lists several. Empty means follow all of them.
	InterchangeDescription string `json:"ic_description,omitempty"`
}

// InterchangeOption is an application facet entry discovered on a catalog page.
type InterchangeOption struct {
	Text string `json:"application_text"`
	ID   string `json:"application_id"`
	URL  string `json:"application_url"`
}

// ListingRecord is a single part listing extracted from a result page.
type ListingRecord struct {
	RunTimestamp string `json:"run_timestamp"`

	ApplicationText *string `json:"application_text"`
	ApplicationID   *string `json:"application_id"`
	ApplicationURL  *string `json:"application_url"`

	PartName             *string  `json:"part_name"`
	DetailURL            *string  `json:"detail_url"`
	Price                *string  `json:"price"`
	Seller               *string  `json:"seller"`
	SellerCity           *string  `json:"seller_city"`
	SellerState          *string  `json:"seller_state"`
	SellerPhone          *string  `json:"seller_phone"`
	Address              []string `json:"address"`
	Mileage              *string  `json:"mileage"`
	Grade                *string  `json:"grade"`
	ConditionDescription *string  `json:"condition_description"`
	VIN                  *string  `json:"vin"`
	StockNo              *string  `json:"stock_no"`
	Position             *string  `json:"position"`
	Color                *string  `json:"color"`
	ShowInfo             *string  `json:"show_info"`
	Thumbnail            *string  `json:"thumbnail"`
	YardID               *string  `json:"yard_id"`
	DistanceMiles        *int     `json:"distance_miles"`
	Interchange          *string  `json:"interchange"`
	Images               []string `json:"images"`
	ImageCount           int      `json:"image_count"`

	SourceYear     string `json:"source_year"`
	SourceMake     string `json:"source_make"`
	SourceModel    string `json:"source_model"`
	SourcePartName string `json:"source_part_name"`
	SourcePartSlug string `json:"source_part_slug"`
	SourceURL      string `json:"source_url"`
}

// StampSource copies the unit's provenance onto the record.
func (r *ListingRecord) StampSource(u CrawlUnit) {
	r.SourceYear = u.Year
	r.SourceMake = u.Make
	r.SourceModel = u.Model
	r.SourcePartName = u.PartName
	r.SourcePartSlug = u.PartSlug
	r.SourceURL = u.URL
}

// RunResult is the outcome of scraping one CrawlUnit. It is also the
// checkpoint payload, so its JSON shape is part of the on-disk contract.
type RunResult struct {
	Records          []*ListingRecord `json:"parts"`
	PagesFetched     int              `json:"pages_scraped"`
	BytesTransferred int64            `json:"total_bytes"`
	AvgPageSize      int64            `json:"avg_page_size"`
	RuntimeSeconds   float64          `json:"record_runtime_seconds,omitempty"`
}

// EmptyRunResult returns a result with no records and zeroed counters.
func EmptyRunResult() *RunResult {
	return &RunResult{Records: []*ListingRecord{}}
}

// Merge appends other's records and adds its counters.
func (r *RunResult) Merge(other *RunResult) {
	if other == nil {
		return
	}
	r.Records = append(r.Records, other.Records...)
	r.PagesFetched += other.PagesFetched
	r.BytesTransferred += other.BytesTransferred
	r.AvgPageSize = averagePageSize(r.BytesTransferred, r.PagesFetched)
}

// Finalize recomputes derived fields after the counters are settled.
func (r *RunResult) Finalize() {
	if r.Records == nil {
		r.Records = []*ListingRecord{}
	}
	r.AvgPageSize = averagePageSize(r.BytesTransferred, r.PagesFetched)
}

// Aggregate holds the overall result of a crawl run.
type Aggregate struct {
	Records    []*ListingRecord
	TotalPages int
	TotalBytes int64
	StartTime  time.Time
	EndTime    time.Time

	UnitCount      int
	CheckpointHits int
	EmptyUnits     int
	FailedUnits    int
	RetryCount     int
	RequestCount   int
	ErrorCount     int
	ErrorsByType   map[string]int
	FailedURLs     []string
}

// AvgPageSize returns the average bytes per fetched page.
func (a *Aggregate) AvgPageSize() int64 {
	return averagePageSize(a.TotalBytes, a.TotalPages)
}

func averagePageSize(bytes int64, pages int) int64 {
	if pages <= 0 {
		return 0
	}
	return bytes / int64(pages)
}
