package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garmentshop/catalog/internal/platform/db"
)

// newPostgresRepository connects to PG_DSN and applies the products schema.
// Tests using it are skipped when PG_DSN is unset.
func newPostgresRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/000001_create_products.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return NewRepository(pool)
}

func pgProduct(t *testing.T, repo *Repository, name string) Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	discount := decimal.RequireFromString("12.5")
	p := Product{
		ID:                 uuid.New(),
		Name:               name,
		Price:              decimal.RequireFromString("49.90"),
		StockQuantity:      5,
		Category:           "Outerwear",
		Brand:              "Acme",
		Gender:             GenderUnisex,
		ImageURLs:          []string{},
		Sizes:              []string{"M", "S"},
		Colors:             []string{},
		DiscountPercentage: &discount,
		SKU:                GenerateSKU("Outerwear"),
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repo.pool.Exec(context.Background(), `DELETE FROM products WHERE id = $1`, p.ID)
	})
	return created
}

func TestRepositorySaveCompareAndSwap(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	p := pgProduct(t, repo, "Parka")
	require.EqualValues(t, 0, p.Version)
	require.Equal(t, "49.9", p.Price.String())

	next := p.Clone()
	next.Name = "Parka II"
	saved, err := repo.Save(ctx, next, p.Version)
	require.NoError(t, err)
	require.EqualValues(t, 1, saved.Version)
	require.Equal(t, "Parka II", saved.Name)

	_, err = repo.Save(ctx, next, p.Version)
	require.ErrorIs(t, err, ErrVersionConflict)

	missing := next.Clone()
	missing.ID = uuid.New()
	_, err = repo.Save(ctx, missing, 0)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryActiveSKUIsUnique(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	p := pgProduct(t, repo, "Parka")

	exists, err := repo.ExistsBySKU(ctx, p.SKU)
	require.NoError(t, err)
	require.True(t, exists)

	dup := p.Clone()
	dup.ID = uuid.New()
	_, err = repo.Create(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestRepositoryQueryFiltersAndPages(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	marker := "Seasonal " + uuid.NewString()[:8]
	for i := 0; i < 3; i++ {
		pgProduct(t, repo, marker)
	}

	pred := Compile(Filter{SearchTerm: &marker, HasDiscount: boolPtr(true)})
	page, err := repo.Query(ctx, pred, PageRequest{Page: 0, Size: 2, SortKey: SortByPrice, SortDirection: SortDesc})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.TotalElements)
	require.Len(t, page.Content, 2)
	require.False(t, page.Last)
	require.Equal(t, "12.5", page.Content[0].DiscountPercentage.String())
}
