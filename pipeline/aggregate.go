package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-parts/checkpoint"
	"github.com/aluiziolira/go-scrape-parts/models"
)

// Aggregator collects per-unit results into their dispatch slots and folds
// them in input order, so the same inputs always produce the same output
// regardless of completion order.
type Aggregator struct {
	mu      sync.Mutex
	results []*models.RunResult
	start   time.Time
}

// NewAggregator reserves one slot per unit.
func NewAggregator(units int) *Aggregator {
	return &Aggregator{results: make([]*models.RunResult, units), start: time.Now()}
}

// Set stores the result of the unit at index i.
func (a *Aggregator) Set(i int, result *models.RunResult) {
	a.mu.Lock()
	a.results[i] = result
	a.mu.Unlock()
}

// Fold concatenates records and sums counters. Units without a result
// contribute nothing. No deduplication is applied.
func (a *Aggregator) Fold() *models.Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	agg := &models.Aggregate{
		Records:   []*models.ListingRecord{},
		StartTime: a.start,
		EndTime:   time.Now(),
		UnitCount: len(a.results),
	}
	for _, r := range a.results {
		if r == nil {
			continue
		}
		agg.Records = append(agg.Records, r.Records...)
		agg.TotalPages += r.PagesFetched
		agg.TotalBytes += r.BytesTransferred
	}
	return agg
}

// WriteFinal writes records as one indented JSON array, atomically.
func WriteFinal(path string, records []*models.ListingRecord) error {
	if records == nil {
		records = []*models.ListingRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode final output: %w", err)
	}
	if err := checkpoint.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write final output: %w", err)
	}
	return nil
}
