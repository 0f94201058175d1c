// Package catalog produces crawl units: it loads them from an enumeration
// CSV and builds that CSV by walking the site's vehicle selector.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// Enumeration CSV columns.
const (
	colRunTimestamp  = "run_timestamp"
	colYear          = "year"
	colMake          = "manufacturer"
	colModel         = "model_name"
	colPartName      = "part_name"
	colPartSlug      = "part_slug"
	colURL           = "url"
	colLinkFound     = "link_found"
	colPartCount     = "part_count"
	colICDescription = "ic_description"
)

// PartFilter admits part names that equal one of Exact or contain one of
// Contains, case-insensitively. An empty filter admits everything.
type PartFilter struct {
	Exact    []string
	Contains []string
}

// Admit reports whether partName passes the filter.
func (f PartFilter) Admit(partName string) bool {
	if len(f.Exact) == 0 && len(f.Contains) == 0 {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(partName))
	for _, e := range f.Exact {
		if name == strings.ToLower(strings.TrimSpace(e)) {
			return true
		}
	}
	for _, c := range f.Contains {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && strings.Contains(name, c) {
			return true
		}
	}
	return false
}

// LoadStats counts how input rows were disposed of.
type LoadStats struct {
	Rows       int
	NoLink     int
	Duplicates int
	Filtered   int
	Admitted   int
}

// LoadUnits reads the enumeration CSV at path. Rows need link_found "true"
// and a URL; duplicate URLs keep their first row; the part filter runs last.
func LoadUnits(path string, filter PartFilter) ([]models.CrawlUnit, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open units csv: %w", err)
	}
	defer f.Close()
	return ReadUnits(f, filter)
}

// ReadUnits is LoadUnits over an arbitrary reader.
func ReadUnits(r io.Reader, filter PartFilter) ([]models.CrawlUnit, LoadStats, error) {
	var stats LoadStats
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("units csv is empty")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read units header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{colLinkFound, colURL} {
		if _, ok := index[required]; !ok {
			return nil, stats, fmt.Errorf("units csv missing column %q", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var units []models.CrawlUnit
	seen := make(map[string]struct{})
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read units row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		link := field(row, colURL)
		if !strings.EqualFold(field(row, colLinkFound), "true") || link == "" {
			stats.NoLink++
			continue
		}
		if _, dup := seen[link]; dup {
			stats.Duplicates++
			continue
		}
		seen[link] = struct{}{}

		unit := models.CrawlUnit{
			Year:                   field(row, colYear),
			Make:                   field(row, colMake),
			Model:                  field(row, colModel),
			PartName:               field(row, colPartName),
			PartSlug:               field(row, colPartSlug),
			URL:                    link,
			InterchangeDescription: field(row, colICDescription),
		}
		if !filter.Admit(unit.PartName) {
			stats.Filtered++
			continue
		}
		units = append(units, unit)
	}
	stats.Admitted = len(units)
	return units, stats, nil
}
