package catalog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"tokokasir/backend/internal/cache"
	"tokokasir/backend/internal/domain"
)

// CachedClient fronts a catalog client with a search cache. Only Search is
// cached; GetBySKU always hits the backing client because stock snapshots
// must be live for cart and restore decisions.
type CachedClient struct {
	backend Client
	cache   cache.SearchCache
	ttl     time.Duration
}

func NewCached(backend Client, searchCache cache.SearchCache, ttl time.Duration) *CachedClient {
	if searchCache == nil {
		searchCache = cache.NoopSearchCache{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedClient{backend: backend, cache: searchCache, ttl: ttl}
}

func (c *CachedClient) Search(ctx context.Context, query string, page int, limit int) (domain.SearchResult, error) {
	key := searchCacheKey(query, page, limit)
	if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		// Degrade to a miss; the catalog remains the source of truth.
		log.Printf("[catalog] WARN: search cache read failed: %v", err)
	}

	result, err := c.backend.Search(ctx, query, page, limit)
	if err != nil {
		return domain.SearchResult{}, err
	}
	if err := c.cache.Set(ctx, key, &result, c.ttl); err != nil {
		log.Printf("[catalog] WARN: search cache write failed: %v", err)
	}
	return result, nil
}

func (c *CachedClient) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return c.backend.GetBySKU(ctx, sku)
}

func searchCacheKey(query string, page int, limit int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", normalized, page, limit)))
	return "pos:product-search:" + hex.EncodeToString(hash[:])
}
