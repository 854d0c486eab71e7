package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Numeric columns are read as text and parsed with decimal so no precision is
// lost through float conversion.
const productColumns = `id, name, description, price::text, stock_quantity, category, brand, material,
	gender, season, image_urls, sizes, colors, discount_percentage::text, view_count, sku,
	is_active, is_deleted, created_at, updated_at, deleted_at, version`

var filterColumns = map[Field]string{
	FieldActive:        "is_active",
	FieldPrice:         "price",
	FieldStockQuantity: "stock_quantity",
	FieldCategory:      "category",
	FieldBrand:         "brand",
	FieldGender:        "gender",
	FieldSeason:        "season",
	FieldName:          "name",
	FieldDescription:   "description",
	FieldDiscount:      "discount_percentage",
}

var sortColumns = map[string]string{
	SortByID:            "id",
	SortByName:          "name",
	SortByPrice:         "price",
	SortByStockQuantity: "stock_quantity",
	SortByCategory:      "category",
	SortByBrand:         "brand",
	SortByViewCount:     "view_count",
	SortByCreatedAt:     "created_at",
	SortByUpdatedAt:     "updated_at",
}

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a Repository on pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Product{}, classify("get product", err)
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	query := `INSERT INTO products (id, name, description, price, stock_quantity, category, brand, material,
	gender, season, image_urls, sizes, colors, discount_percentage, view_count, sku,
	is_active, is_deleted, created_at, updated_at, deleted_at, version)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::numeric, $15, $16, $17, $18, $19, $20, $21, 0)
RETURNING ` + productColumns
	row := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Description, p.Price.String(), p.StockQuantity, p.Category, p.Brand, p.Material,
		string(p.Gender), seasonArg(p.Season), textArray(p.ImageURLs), textArray(p.Sizes), textArray(p.Colors),
		decimalArg(p.DiscountPercentage), p.ViewCount, p.SKU,
		p.Active, p.Deleted, p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	created, err := scanProduct(row)
	if err != nil {
		return Product{}, classify("create product", err)
	}
	return created, nil
}

// Save writes p only when the stored version still equals expectedVersion.
// The version bump happens in the same statement as the check.
func (r *Repository) Save(ctx context.Context, p Product, expectedVersion int64) (Product, error) {
	query := `UPDATE products SET
	name = $3, description = $4, price = $5::numeric, stock_quantity = $6, category = $7, brand = $8,
	material = $9, gender = $10, season = $11, image_urls = $12, sizes = $13, colors = $14,
	discount_percentage = $15::numeric, view_count = $16, is_active = $17, is_deleted = $18,
	deleted_at = $19, updated_at = $20, version = version + 1
WHERE id = $1 AND version = $2
RETURNING ` + productColumns
	row := r.pool.QueryRow(ctx, query,
		p.ID, expectedVersion,
		p.Name, p.Description, p.Price.String(), p.StockQuantity, p.Category, p.Brand,
		p.Material, string(p.Gender), seasonArg(p.Season), textArray(p.ImageURLs), textArray(p.Sizes), textArray(p.Colors),
		decimalArg(p.DiscountPercentage), p.ViewCount, p.Active, p.Deleted,
		p.DeletedAt, p.UpdatedAt,
	)
	saved, err := scanProduct(row)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Product{}, classify("save product", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return Product{}, classify("save product", err)
	}
	if !exists {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	return Product{}, fmt.Errorf("%w: product %s changed since version %d", ErrVersionConflict, p.ID, expectedVersion)
}

func (r *Repository) Query(ctx context.Context, pred Predicate, req PageRequest) (Page, error) {
	req = req.Normalized()
	where, args, err := renderWhere(pred)
	if err != nil {
		return Page{}, err
	}
	orderBy, err := renderOrderBy(req)
	if err != nil {
		return Page{}, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return Page{}, classify("count products", err)
	}

	n := len(args)
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + where +
		` ORDER BY ` + orderBy +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.pool.Query(ctx, query, append(args, req.Size, req.Offset())...)
	if err != nil {
		return Page{}, classify("query products", err)
	}
	defer rows.Close()

	content := make([]Product, 0, req.Size)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return Page{}, classify("scan product", err)
		}
		content = append(content, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, classify("query products", err)
	}
	return NewPage(content, req, total), nil
}

func (r *Repository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND is_active)`, sku).Scan(&exists)
	if err != nil {
		return false, classify("check sku", err)
	}
	return exists, nil
}

// renderWhere translates a predicate tree into a parameterised SQL condition.
// Column names come from a fixed whitelist; every value is a bind parameter.
func renderWhere(pred Predicate) (string, []any, error) {
	var args []any
	var render func(Predicate) (string, error)
	render = func(pred Predicate) (string, error) {
		switch v := pred.(type) {
		case And:
			return renderJunction([]Predicate(v), " AND ", "TRUE", render)
		case Or:
			return renderJunction([]Predicate(v), " OR ", "FALSE", render)
		case Cond:
			col, ok := filterColumns[v.Field]
			if !ok {
				return "", fmt.Errorf("catalog: unsupported filter field %q", v.Field)
			}
			bind := func(value any) string {
				args = append(args, value)
				return "$" + strconv.Itoa(len(args))
			}
			switch v.Op {
			case OpIsTrue:
				return col + " IS TRUE", nil
			case OpNotNull:
				return col + " IS NOT NULL", nil
			case OpContainsFold:
				s, _ := v.Value.(string)
				return "LOWER(" + col + ") LIKE " + bind("%"+escapeLike(strings.ToLower(s))+"%") + ` ESCAPE '\'`, nil
			case OpEq, OpGte, OpLte, OpGt:
				value, err := sqlValue(v)
				if err != nil {
					return "", err
				}
				placeholder := bind(value)
				if _, numeric := v.Value.(decimal.Decimal); numeric && v.Field != FieldStockQuantity {
					placeholder += "::numeric"
				}
				return col + " " + string(v.Op) + " " + placeholder, nil
			default:
				return "", fmt.Errorf("catalog: unsupported operator %q", v.Op)
			}
		default:
			return "", fmt.Errorf("catalog: unsupported predicate %T", pred)
		}
	}
	where, err := render(pred)
	if err != nil {
		return "", nil, err
	}
	return where, args, nil
}

func renderJunction(preds []Predicate, sep, empty string, render func(Predicate) (string, error)) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		s, err := render(p)
		if err != nil {
			return "", err
		}
		if _, leaf := p.(Cond); !leaf {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

func sqlValue(c Cond) (any, error) {
	switch v := c.Value.(type) {
	case string:
		return v, nil
	case decimal.Decimal:
		if c.Field == FieldStockQuantity {
			return v.IntPart(), nil
		}
		return v.String(), nil
	default:
		return nil, fmt.Errorf("catalog: unsupported value %T for %s", c.Value, c.Field)
	}
}

func renderOrderBy(req PageRequest) (string, error) {
	col, ok := sortColumns[req.SortKey]
	if !ok {
		return "", fmt.Errorf("catalog: unsupported sort key %q", req.SortKey)
	}
	dir := "ASC"
	if req.SortDirection == SortDesc {
		dir = "DESC"
	}
	if col == "id" {
		return "id " + dir, nil
	}
	return col + " " + dir + ", id ASC", nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		price    string
		gender   string
		season   *string
		discount *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.Category, &p.Brand, &p.Material,
		&gender, &season, &p.ImageURLs, &p.Sizes, &p.Colors, &discount, &p.ViewCount, &p.SKU,
		&p.Active, &p.Deleted, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt, &p.Version,
	)
	if err != nil {
		return Product{}, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("catalog: parse price: %w", err)
	}
	if discount != nil {
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return Product{}, fmt.Errorf("catalog: parse discount: %w", err)
		}
		p.DiscountPercentage = &d
	}
	p.Gender = Gender(gender)
	if season != nil {
		s := Season(*season)
		p.Season = &s
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.DeletedAt != nil {
		t := p.DeletedAt.UTC()
		p.DeletedAt = &t
	}
	return p, nil
}

func seasonArg(s *Season) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	v := d.String()
	return &v
}

func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// classify maps driver failures onto catalog sentinels while keeping the cause.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, pgErr.ConstraintName)
	}
	if isUnavailable(err) {
		return fmt.Errorf("catalog: %s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("catalog: %s: %w", op, err)
}

func isUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 57P0x is operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	return false
}
