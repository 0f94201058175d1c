// Package checkpoint persists finished crawl units so an interrupted run can
// resume without refetching them.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// ErrNotFound is returned by Load when no checkpoint exists for a key.
var ErrNotFound = errors.New("checkpoint: not found")

var unsafeKeyRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// UnitKey derives the stable checkpoint key of a unit from its make, year,
// model and part slug.
func UnitKey(u models.CrawlUnit) string {
	raw := fmt.Sprintf("%s_%s_%s_%s", u.Make, u.Year, u.Model, u.PartSlug)
	return unsafeKeyRe.ReplaceAllString(raw, "_")
}

// Store persists one RunResult per unit key. A key that Has reports present
// must Load successfully.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Load(ctx context.Context, key string) (*models.RunResult, error)
	Save(ctx context.Context, key string, result *models.RunResult) error
}

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the checkpoint files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Has reports whether a checkpoint file exists for key.
func (s *FileStore) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat checkpoint %s: %w", key, err)
	}
}

// Load reads the checkpoint for key.
func (s *FileStore) Load(_ context.Context, key string) (*models.RunResult, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", key, err)
	}
	return decode(key, data)
}

// Save writes the checkpoint through a temp file and rename so a crash never
// leaves a truncated file behind.
func (s *FileStore) Save(_ context.Context, key string, result *models.RunResult) error {
	data, err := encode(result)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", key, err)
	}
	return WriteFileAtomic(s.path(key), data)
}

// WriteFileAtomic writes data to a sibling temp file and renames it onto path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func encode(result *models.RunResult) ([]byte, error) {
	if result == nil {
		result = models.EmptyRunResult()
	}
	return json.MarshalIndent(result, "", "  ")
}

func decode(key string, data []byte) (*models.RunResult, error) {
	var result models.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", key, err)
	}
	result.Finalize()
	return &result, nil
}
