// Package catalog manages the two-table catalog store (products + stocks).
//
// The dual write is the only transactional invariant in the system: a product
// is never observable without its stock row, and vice versa. Writes are
// keyed by product id and idempotent, which is what makes at-least-once
// queue redelivery safe.
package catalog

import (
	"context"

	"github.com/stockyard/stockyard/pkg/types"
)

// Store is the catalog store port.
type Store interface {
	// CreateProduct atomically writes the product and its stock count.
	// Both rows land or neither does. Re-writing an existing id replaces
	// the pair instead of duplicating it.
	CreateProduct(ctx context.Context, p types.Product, count int64) error

	// GetProduct returns the product joined with its stock count.
	// Count defaults to 0 when no stock row exists.
	GetProduct(ctx context.Context, id string) (types.ProductWithStock, error)

	// ListProducts returns all products joined with stock counts.
	ListProducts(ctx context.Context) ([]types.ProductWithStock, error)

	// Close releases store resources.
	Close() error
}
