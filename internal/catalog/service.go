package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Catalog exposes product operations to transports and jobs.
type Catalog interface {
	CreateProduct(ctx context.Context, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput, expectedVersion *int64) (Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, includeInactive bool, req PageRequest) (Page, error)
	SearchProducts(ctx context.Context, f Filter, req PageRequest) (Page, error)
	ListByCategory(ctx context.Context, category string, req PageRequest) (Page, error)
	ListByBrand(ctx context.Context, brand string, req PageRequest) (Page, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	IncrementViewCount(ctx context.Context, id uuid.UUID) (Product, error)
	ReplaceImages(ctx context.Context, id uuid.UUID, urls []string) error
	CheckStock(ctx context.Context, id uuid.UUID, quantity int) error
	ProductExists(ctx context.Context, id uuid.UUID) error
}

// Service implements Catalog directly on a Store, without caching.
type Service struct {
	store Store
	guard guard
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a catalog service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = guard{store: store, now: s.now}
	return s
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	sku, err := s.assignSKU(ctx, in)
	if err != nil {
		return Product{}, err
	}

	now := s.now().UTC()
	p := Product{
		ID:        uuid.New(),
		SKU:       sku,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(&p, in)
	if in.Active != nil {
		p.Active = *in.Active
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}

	created, err := s.store.Create(ctx, p)
	if errors.Is(err, ErrDuplicateSKU) {
		return Product{}, invalid("sku", "already assigned to an active product")
	}
	return created, err
}

func (s *Service) assignSKU(ctx context.Context, in ProductInput) (string, error) {
	if in.SKU != "" {
		taken, err := s.store.ExistsBySKU(ctx, in.SKU)
		if err != nil {
			return "", err
		}
		if taken {
			return "", invalid("sku", "already assigned to an active product")
		}
		return in.SKU, nil
	}
	for i := 0; i < skuMaxGeneration; i++ {
		sku := GenerateSKU(in.Category)
		taken, err := s.store.ExistsBySKU(ctx, sku)
		if err != nil {
			return "", err
		}
		if !taken {
			return sku, nil
		}
	}
	return "", invalid("sku", "could not allocate a unique sku")
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput, expectedVersion *int64) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	updated, _, err := s.guard.apply(ctx, id, expectedVersion, func(p *Product) error {
		if in.Active != nil {
			if *in.Active && p.Deleted {
				return invalid("active", "a deleted product cannot be reactivated")
			}
			p.Active = *in.Active
		}
		applyInput(p, in)
		return nil
	})
	if errors.Is(err, ErrDuplicateSKU) {
		return Product{}, invalid("sku", "already assigned to an active product")
	}
	return updated, err
}

// applyInput copies client-settable fields. SKU is only honoured at creation
// and is set by the caller.
func applyInput(p *Product, in ProductInput) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.StockQuantity = in.StockQuantity
	p.Category = in.Category
	p.Brand = in.Brand
	p.Material = in.Material
	p.Gender = in.Gender
	p.Season = in.Season
	p.DiscountPercentage = in.DiscountPercentage
	if in.ImageURLs != nil {
		p.ImageURLs = uniqueStrings(in.ImageURLs)
	}
	if in.Sizes != nil {
		p.Sizes = normalizeSet(in.Sizes)
	}
	if in.Colors != nil {
		p.Colors = normalizeSet(in.Colors)
	}
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, includeInactive bool, req PageRequest) (Page, error) {
	req = req.Normalized()
	if err := validatePage(req); err != nil {
		return Page{}, err
	}
	return s.store.Query(ctx, listingPredicate(includeInactive), req)
}

func (s *Service) SearchProducts(ctx context.Context, f Filter, req PageRequest) (Page, error) {
	req = req.Normalized()
	if err := ValidateFilter(f); err != nil {
		return Page{}, err
	}
	if err := validatePage(req); err != nil {
		return Page{}, err
	}
	return s.store.Query(ctx, Compile(f), req)
}

func (s *Service) ListByCategory(ctx context.Context, category string, req PageRequest) (Page, error) {
	req = req.Normalized()
	if category == "" {
		return Page{}, invalid("category", "is required")
	}
	if err := validatePage(req); err != nil {
		return Page{}, err
	}
	return s.store.Query(ctx, categoryPredicate(category), req)
}

func (s *Service) ListByBrand(ctx context.Context, brand string, req PageRequest) (Page, error) {
	req = req.Normalized()
	if brand == "" {
		return Page{}, invalid("brand", "is required")
	}
	if err := validatePage(req); err != nil {
		return Page{}, err
	}
	return s.store.Query(ctx, brandPredicate(brand), req)
}

// DeleteProduct soft-deletes the product. Deleting an already deleted product
// succeeds without writing.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, _, err := s.guard.apply(ctx, id, nil, func(p *Product) error {
		if p.Deleted {
			return errNoChange
		}
		at := s.now().UTC()
		p.Deleted = true
		p.Active = false
		p.DeletedAt = &at
		return nil
	})
	return err
}

func (s *Service) IncrementViewCount(ctx context.Context, id uuid.UUID) (Product, error) {
	p, _, err := s.guard.apply(ctx, id, nil, func(p *Product) error {
		p.ViewCount++
		return nil
	})
	return p, err
}

func (s *Service) ReplaceImages(ctx context.Context, id uuid.UUID, urls []string) error {
	if err := validateImageURLs(urls); err != nil {
		return err
	}
	_, _, err := s.guard.apply(ctx, id, nil, func(p *Product) error {
		p.ImageURLs = append([]string{}, uniqueStrings(urls)...)
		return nil
	})
	return err
}

// CheckStock reads the store directly so the answer never comes from a cache.
func (s *Service) CheckStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return invalid("quantity", "must be greater than 0")
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.StockQuantity < quantity {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   quantity,
			Available:   p.StockQuantity,
		}
	}
	return nil
}

func (s *Service) ProductExists(ctx context.Context, id uuid.UUID) error {
	_, err := s.store.Get(ctx, id)
	return err
}
