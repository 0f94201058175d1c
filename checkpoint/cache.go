package checkpoint

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// CachedStore answers Has and Load from a bounded LRU before falling through
// to the backing store. Saves write through.
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, *models.RunResult]
}

// NewCachedStore wraps backend with an LRU of size entries.
func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, *models.RunResult](size)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint cache: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

// Has reports a cached entry without touching the backend.
func (s *CachedStore) Has(ctx context.Context, key string) (bool, error) {
	if s.cache.Contains(key) {
		return true, nil
	}
	return s.backend.Has(ctx, key)
}

// Load returns the cached result or loads and caches it.
func (s *CachedStore) Load(ctx context.Context, key string) (*models.RunResult, error) {
	if result, ok := s.cache.Get(key); ok {
		return result, nil
	}
	result, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, result)
	return result, nil
}

// Save persists to the backend first and caches only on success.
func (s *CachedStore) Save(ctx context.Context, key string, result *models.RunResult) error {
	if err := s.backend.Save(ctx, key, result); err != nil {
		return err
	}
	s.cache.Add(key, result)
	return nil
}

// Len is the number of cached entries.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}
