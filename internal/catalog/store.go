package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store is the authoritative persistence boundary for products.
//
// Save is a compare-and-swap: it succeeds only when the stored version still
// equals expectedVersion, and the stored version then becomes
// expectedVersion+1. A mismatch returns ErrVersionConflict, a missing record
// ErrNotFound.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Save(ctx context.Context, p Product, expectedVersion int64) (Product, error)
	Query(ctx context.Context, pred Predicate, req PageRequest) (Page, error)
	// ExistsBySKU reports whether an active product owns sku.
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}
