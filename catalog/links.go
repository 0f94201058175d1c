package catalog

import (
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Link is one enumeration output row. A model whose parts could not be
// listed yields a single Link with LinkFound false and PartCount 0.
type Link struct {
	RunTimestamp string
	Year         string
	Make         string
	Model        string
	PartName     string
	PartSlug     string
	URL          string
	LinkFound    bool
	PartCount    int
}

// CatalogURL builds the catalog page URL for a vehicle and part slug.
func CatalogURL(siteURL, vehicleMake, year, model, partSlug string) string {
	segments := []string{"catalog-6", "vehicle", vehicleMake, year, model, partSlug}
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(siteURL, "/") + "/" + strings.Join(segments, "/")
}

// LinkWriter writes Links as a CSV that LoadUnits reads back.
type LinkWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
}

// NewLinkWriter creates filename and writes the header row.
func NewLinkWriter(filename string) (*LinkWriter, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create links csv: %w", err)
	}
	w := csv.NewWriter(f)
	header := []string{colRunTimestamp, colYear, colMake, colModel, colPartName, colPartSlug, colURL, colLinkFound, colPartCount}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write links header: %w", err)
	}
	return &LinkWriter{file: f, writer: w}, nil
}

// WriteLinks appends rows and flushes them to disk.
func (lw *LinkWriter) WriteLinks(links []Link) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	for _, l := range links {
		row := []string{
			l.RunTimestamp, l.Year, l.Make, l.Model, l.PartName, l.PartSlug, l.URL,
			strconv.FormatBool(l.LinkFound), strconv.Itoa(l.PartCount),
		}
		if err := lw.writer.Write(row); err != nil {
			return fmt.Errorf("write link row: %w", err)
		}
		lw.rows++
	}
	lw.writer.Flush()
	if err := lw.writer.Error(); err != nil {
		return fmt.Errorf("flush links: %w", err)
	}
	return nil
}

// Rows is the number of data rows written.
func (lw *LinkWriter) Rows() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.rows
}

// Close flushes and closes the file.
func (lw *LinkWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.writer.Flush()
	if err := lw.writer.Error(); err != nil {
		lw.file.Close()
		return fmt.Errorf("flush links: %w", err)
	}
	return lw.file.Close()
}
