package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRenderWhereListing(t *testing.T) {
	where, args, err := renderWhere(Compile(Filter{}))
	require.NoError(t, err)
	require.Equal(t, "is_active IS TRUE", where)
	require.Empty(t, args)

	where, args, err = renderWhere(Compile(Filter{IncludeInactive: boolPtr(true)}))
	require.NoError(t, err)
	require.Equal(t, "TRUE", where)
	require.Empty(t, args)
}

func TestRenderWhereFullFilter(t *testing.T) {
	gender := GenderMen
	pred := Compile(Filter{
		SearchTerm:  strPtr("50%_Off"),
		MinPrice:    decPtr("10.5"),
		MaxPrice:    decPtr("99"),
		Gender:      &gender,
		Brand:       strPtr("Acme"),
		InStock:     boolPtr(true),
		HasDiscount: boolPtr(true),
	})

	where, args, err := renderWhere(pred)
	require.NoError(t, err)
	require.Equal(t,
		`is_active IS TRUE AND price >= $1::numeric AND price <= $2::numeric AND gender = $3 AND brand = $4`+
			` AND (LOWER(name) LIKE $5 ESCAPE '\' OR LOWER(description) LIKE $6 ESCAPE '\')`+
			` AND stock_quantity > $7`+
			` AND (discount_percentage IS NOT NULL AND discount_percentage > $8::numeric)`,
		where)
	require.Equal(t, []any{"10.5", "99", "MEN", "Acme", `%50\%\_off%`, `%50\%\_off%`, int64(0), "0"}, args)
}

func TestRenderWhereRejectsUnknownField(t *testing.T) {
	_, _, err := renderWhere(And{Cond{Field: "password", Op: OpEq, Value: "x"}})
	require.Error(t, err)

	_, _, err = renderWhere(Cond{Field: FieldPrice, Op: OpGte, Value: 3})
	require.Error(t, err)
}

func TestRenderOrderBy(t *testing.T) {
	order, err := renderOrderBy(PageRequest{SortKey: SortByID, SortDirection: SortDesc})
	require.NoError(t, err)
	require.Equal(t, "id DESC", order)

	order, err = renderOrderBy(PageRequest{SortKey: SortByViewCount, SortDirection: SortAsc})
	require.NoError(t, err)
	require.Equal(t, "view_count ASC, id ASC", order)

	_, err = renderOrderBy(PageRequest{SortKey: "1; DROP TABLE products"})
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	err := classify("create product", &pgconn.PgError{Code: "23505", ConstraintName: "products_active_sku_uidx"})
	require.ErrorIs(t, err, ErrDuplicateSKU)

	err = classify("get product", &pgconn.PgError{Code: "08006"})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = classify("get product", context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = classify("get product", errors.New("syntax error"))
	require.NotErrorIs(t, err, ErrStoreUnavailable)
}
