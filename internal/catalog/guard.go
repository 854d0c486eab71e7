package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// errNoChange lets a mutation report that the record is already in the target
// state, so nothing is written.
var errNoChange = errors.New("catalog: no change")

// guard runs read-modify-write cycles under optimistic locking.
type guard struct {
	store Store
	now   func() time.Time
}

// apply reads the record, checks expected against the stored version, applies
// mutate to a copy and saves it conditioned on the version that was read. It
// never retries; a concurrent writer surfaces as ErrVersionConflict.
// The returned bool reports whether a write happened.
func (g guard) apply(ctx context.Context, id uuid.UUID, expected *int64, mutate func(*Product) error) (Product, bool, error) {
	current, err := g.store.Get(ctx, id)
	if err != nil {
		return Product{}, false, err
	}
	if expected != nil && *expected != current.Version {
		return Product{}, false, fmt.Errorf("%w: product %s is at version %d, request was based on %d",
			ErrVersionConflict, id, current.Version, *expected)
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		if errors.Is(err, errNoChange) {
			return current, false, nil
		}
		return Product{}, false, err
	}

	// Identity, SKU and creation time are immutable; deletion is terminal.
	next.ID = current.ID
	next.SKU = current.SKU
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version
	next.UpdatedAt = g.now().UTC()
	if current.Deleted {
		next.Deleted = true
		next.Active = false
		next.DeletedAt = current.DeletedAt
	}

	saved, err := g.store.Save(ctx, next, current.Version)
	if err != nil {
		return Product{}, false, err
	}
	return saved, true, nil
}
