package cache

import (
	"context"
	"time"

	"tokokasir/backend/internal/domain"
)

// SearchCache memoizes product search results for the cashier lookup
// screen. Failures on the read path must degrade to a miss, never an error
// surfaced to the cashier.
type SearchCache interface {
	Get(ctx context.Context, key string) (*domain.SearchResult, bool, error)
	Set(ctx context.Context, key string, value *domain.SearchResult, ttl time.Duration) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string) (*domain.SearchResult, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ *domain.SearchResult, _ time.Duration) error {
	return nil
}
