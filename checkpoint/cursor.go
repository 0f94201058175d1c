package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cursor records the last fully enumerated year and make.
type Cursor struct {
	Year string
	Make string
}

// SkipYear reports whether year was finished before the cursor was written.
// Years compare numerically when both parse as integers.
func (c Cursor) SkipYear(year string) bool {
	if c.Year == "" {
		return false
	}
	y, errY := strconv.Atoi(year)
	cy, errC := strconv.Atoi(c.Year)
	if errY == nil && errC == nil {
		return y < cy
	}
	return year < c.Year
}

// SkipMake reports whether vehicleMake in year was already enumerated.
func (c Cursor) SkipMake(year, vehicleMake string) bool {
	if c.Year == "" || c.Make == "" || year != c.Year {
		return false
	}
	return strings.ToLower(vehicleMake) <= strings.ToLower(c.Make)
}

// CursorStore keeps the enumeration cursor as "year|make" in a single file.
type CursorStore struct {
	path string
}

// NewCursorStore returns a store backed by path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Path returns the cursor file location.
func (s *CursorStore) Path() string {
	return s.path
}

// Load returns the saved cursor. ok is false when none is stored or the file
// is malformed.
func (s *CursorStore) Load() (Cursor, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}
	year, vehicleMake, found := strings.Cut(strings.TrimSpace(string(data)), "|")
	if !found || year == "" {
		return Cursor{}, false, nil
	}
	return Cursor{Year: year, Make: vehicleMake}, true, nil
}

// Save overwrites the cursor.
func (s *CursorStore) Save(year, vehicleMake string) error {
	return WriteFileAtomic(s.path, []byte(year+"|"+vehicleMake))
}

// Clear removes the cursor; clearing a missing cursor is not an error.
func (s *CursorStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear cursor: %w", err)
	}
	return nil
}
