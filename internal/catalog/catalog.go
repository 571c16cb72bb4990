package catalog

import (
	"context"
	"errors"

	"tokokasir/backend/internal/domain"
)

var ErrNotFound = errors.New("product not found")

// Client is the consumed Product Catalog contract. GetBySKU returns a live
// stock snapshot and must be queried again whenever a fresh stock figure is
// needed (add-to-cart, restore).
type Client interface {
	Search(ctx context.Context, query string, page int, limit int) (domain.SearchResult, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
}
