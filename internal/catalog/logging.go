package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type loggingCatalog struct {
	next   Catalog
	logger *slog.Logger
}

// WithLogging logs every catalog call with its duration. Mutations log at info,
// reads at debug. Domain rejections log at info, anything else at error.
func WithLogging(next Catalog, logger *slog.Logger) Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingCatalog{next: next, logger: logger.With(slog.String("component", "catalog"))}
}

func (l *loggingCatalog) record(ctx context.Context, op string, mutation bool, start time.Time, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("operation", op), slog.Duration("duration", time.Since(start)))
	level := slog.LevelDebug
	msg := "catalog call"
	switch {
	case err == nil:
		if mutation {
			level = slog.LevelInfo
		}
	case isDomainError(err):
		level = slog.LevelInfo
		msg = "catalog call rejected"
		attrs = append(attrs, slog.String("reason", err.Error()))
	default:
		level = slog.LevelError
		msg = "catalog call failed"
		attrs = append(attrs, slog.Any("error", err))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrInsufficientStock)
}

func productAttr(id uuid.UUID) slog.Attr {
	return slog.String("product_id", id.String())
}

func (l *loggingCatalog) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	start := time.Now()
	p, err := l.next.CreateProduct(ctx, in)
	l.record(ctx, "create_product", true, start, err, productAttr(p.ID), slog.String("sku", p.SKU))
	return p, err
}

func (l *loggingCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput, expectedVersion *int64) (Product, error) {
	start := time.Now()
	p, err := l.next.UpdateProduct(ctx, id, in, expectedVersion)
	l.record(ctx, "update_product", true, start, err, productAttr(id), slog.Int64("version", p.Version))
	return p, err
}

func (l *loggingCatalog) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	start := time.Now()
	p, err := l.next.GetProduct(ctx, id)
	l.record(ctx, "get_product", false, start, err, productAttr(id))
	return p, err
}

func (l *loggingCatalog) ListProducts(ctx context.Context, includeInactive bool, req PageRequest) (Page, error) {
	start := time.Now()
	page, err := l.next.ListProducts(ctx, includeInactive, req)
	l.record(ctx, "list_products", false, start, err, slog.Bool("include_inactive", includeInactive), slog.Int("page", req.Page))
	return page, err
}

func (l *loggingCatalog) SearchProducts(ctx context.Context, f Filter, req PageRequest) (Page, error) {
	start := time.Now()
	page, err := l.next.SearchProducts(ctx, f, req)
	l.record(ctx, "search_products", false, start, err, slog.Int("page", req.Page), slog.Int64("total", page.TotalElements))
	return page, err
}

func (l *loggingCatalog) ListByCategory(ctx context.Context, category string, req PageRequest) (Page, error) {
	start := time.Now()
	page, err := l.next.ListByCategory(ctx, category, req)
	l.record(ctx, "list_by_category", false, start, err, slog.String("category", category), slog.Int("page", req.Page))
	return page, err
}

func (l *loggingCatalog) ListByBrand(ctx context.Context, brand string, req PageRequest) (Page, error) {
	start := time.Now()
	page, err := l.next.ListByBrand(ctx, brand, req)
	l.record(ctx, "list_by_brand", false, start, err, slog.String("brand", brand), slog.Int("page", req.Page))
	return page, err
}

func (l *loggingCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := l.next.DeleteProduct(ctx, id)
	l.record(ctx, "delete_product", true, start, err, productAttr(id))
	return err
}

func (l *loggingCatalog) IncrementViewCount(ctx context.Context, id uuid.UUID) (Product, error) {
	start := time.Now()
	p, err := l.next.IncrementViewCount(ctx, id)
	l.record(ctx, "increment_view_count", false, start, err, productAttr(id))
	return p, err
}

func (l *loggingCatalog) ReplaceImages(ctx context.Context, id uuid.UUID, urls []string) error {
	start := time.Now()
	err := l.next.ReplaceImages(ctx, id, urls)
	l.record(ctx, "replace_images", true, start, err, productAttr(id), slog.Int("images", len(urls)))
	return err
}

func (l *loggingCatalog) CheckStock(ctx context.Context, id uuid.UUID, quantity int) error {
	start := time.Now()
	err := l.next.CheckStock(ctx, id, quantity)
	l.record(ctx, "check_stock", false, start, err, productAttr(id), slog.Int("quantity", quantity))
	return err
}

func (l *loggingCatalog) ProductExists(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := l.next.ProductExists(ctx, id)
	l.record(ctx, "product_exists", false, start, err, productAttr(id))
	return err
}
