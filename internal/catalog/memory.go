package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps products in process memory. It honours the same
// compare-and-swap contract as the Postgres store and is used by tests and
// the STORE_BACKEND=memory profile.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Product
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]Product)}
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[p.ID]; exists {
		return Product{}, fmt.Errorf("catalog: product %s already exists", p.ID)
	}
	if p.Active && m.activeSKULocked(p.SKU, p.ID) {
		return Product{}, ErrDuplicateSKU
	}
	p.Version = 0
	m.items[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, p Product, expectedVersion int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[p.ID]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	if current.Version != expectedVersion {
		return Product{}, fmt.Errorf("%w: product %s is at version %d, expected %d",
			ErrVersionConflict, p.ID, current.Version, expectedVersion)
	}
	if p.Active && m.activeSKULocked(p.SKU, p.ID) {
		return Product{}, ErrDuplicateSKU
	}
	p.Version = expectedVersion + 1
	p.CreatedAt = current.CreatedAt
	m.items[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (m *MemoryStore) Query(_ context.Context, pred Predicate, req PageRequest) (Page, error) {
	req = req.Normalized()
	m.mu.RLock()
	matched := make([]Product, 0, len(m.items))
	for _, p := range m.items {
		if pred.Match(p) {
			matched = append(matched, p.Clone())
		}
	}
	m.mu.RUnlock()

	compare := productComparator(req.SortKey)
	desc := req.SortDirection == SortDesc
	slices.SortFunc(matched, func(a, b Product) int {
		c := compare(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	total := int64(len(matched))
	start := max(0, min(req.Offset(), len(matched)))
	end := min(start+req.Size, len(matched))
	return NewPage(matched[start:end], req, total), nil
}

func (m *MemoryStore) ExistsBySKU(_ context.Context, sku string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSKULocked(sku, uuid.Nil), nil
}

func (m *MemoryStore) activeSKULocked(sku string, except uuid.UUID) bool {
	for id, p := range m.items {
		if id != except && p.Active && p.SKU == sku {
			return true
		}
	}
	return false
}

func productComparator(key string) func(a, b Product) int {
	switch key {
	case SortByName:
		return func(a, b Product) int { return cmp.Compare(a.Name, b.Name) }
	case SortByPrice:
		return func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortByStockQuantity:
		return func(a, b Product) int { return cmp.Compare(a.StockQuantity, b.StockQuantity) }
	case SortByCategory:
		return func(a, b Product) int { return cmp.Compare(a.Category, b.Category) }
	case SortByBrand:
		return func(a, b Product) int { return cmp.Compare(a.Brand, b.Brand) }
	case SortByViewCount:
		return func(a, b Product) int { return cmp.Compare(a.ViewCount, b.ViewCount) }
	case SortByCreatedAt:
		return func(a, b Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortByUpdatedAt:
		return func(a, b Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b Product) int { return strings.Compare(a.ID.String(), b.ID.String()) }
	}
}
