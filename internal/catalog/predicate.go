package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a filterable product attribute.
type Field string

const (
	FieldActive        Field = "active"
	FieldPrice         Field = "price"
	FieldStockQuantity Field = "stockQuantity"
	FieldCategory      Field = "category"
	FieldBrand         Field = "brand"
	FieldGender        Field = "gender"
	FieldSeason        Field = "season"
	FieldName          Field = "name"
	FieldDescription   Field = "description"
	FieldDiscount      Field = "discountPercentage"
)

// Op is a comparison applied to one field.
type Op string

const (
	OpEq           Op = "="
	OpGte          Op = ">="
	OpLte          Op = "<="
	OpGt           Op = ">"
	OpIsTrue       Op = "IS TRUE"
	OpNotNull      Op = "IS NOT NULL"
	OpContainsFold Op = "CONTAINS"
)

// Predicate is a boolean expression over a product. Implementations are
// immutable values and safe to share between goroutines.
type Predicate interface {
	Match(p Product) bool
	String() string
}

// Cond compares one field against Value. Value is a string for text and enum
// fields and a decimal.Decimal for numeric fields; unary ops ignore it.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

// And matches when every operand matches. An empty And matches everything.
type And []Predicate

// Or matches when at least one operand matches. An empty Or matches nothing.
type Or []Predicate

func (a And) Match(p Product) bool {
	for _, pred := range a {
		if !pred.Match(p) {
			return false
		}
	}
	return true
}

func (a And) String() string {
	if len(a) == 0 {
		return "TRUE"
	}
	return joinPredicates(a, " AND ")
}

func (o Or) Match(p Product) bool {
	for _, pred := range o {
		if pred.Match(p) {
			return true
		}
	}
	return false
}

func (o Or) String() string {
	if len(o) == 0 {
		return "FALSE"
	}
	return joinPredicates(o, " OR ")
}

func joinPredicates(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, pred := range preds {
		s := pred.String()
		if _, nested := pred.(Cond); !nested {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

func (c Cond) String() string {
	switch c.Op {
	case OpIsTrue, OpNotNull:
		return fmt.Sprintf("%s %s", c.Field, c.Op)
	case OpEq, OpContainsFold:
		return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Value)
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
}

func (c Cond) Match(p Product) bool {
	switch c.Op {
	case OpIsTrue:
		return c.Field == FieldActive && p.Active
	case OpNotNull:
		return !isNull(c.Field, p)
	case OpEq:
		s, ok := textValue(c.Field, p)
		want, isString := c.Value.(string)
		return ok && isString && s == want
	case OpContainsFold:
		s, ok := textValue(c.Field, p)
		want, isString := c.Value.(string)
		return ok && isString && strings.Contains(strings.ToLower(s), strings.ToLower(want))
	case OpGte, OpLte, OpGt:
		n, ok := numericValue(c.Field, p)
		bound, isDecimal := c.Value.(decimal.Decimal)
		if !ok || !isDecimal {
			return false
		}
		cmp := n.Cmp(bound)
		switch c.Op {
		case OpGte:
			return cmp >= 0
		case OpLte:
			return cmp <= 0
		default:
			return cmp > 0
		}
	}
	return false
}

func textValue(f Field, p Product) (string, bool) {
	switch f {
	case FieldCategory:
		return p.Category, true
	case FieldBrand:
		return p.Brand, true
	case FieldName:
		return p.Name, true
	case FieldDescription:
		return p.Description, true
	case FieldGender:
		return string(p.Gender), p.Gender != ""
	case FieldSeason:
		if p.Season == nil {
			return "", false
		}
		return string(*p.Season), true
	}
	return "", false
}

func numericValue(f Field, p Product) (decimal.Decimal, bool) {
	switch f {
	case FieldPrice:
		return p.Price, true
	case FieldStockQuantity:
		return decimal.NewFromInt(int64(p.StockQuantity)), true
	case FieldDiscount:
		if p.DiscountPercentage == nil {
			return decimal.Decimal{}, false
		}
		return *p.DiscountPercentage, true
	}
	return decimal.Decimal{}, false
}

func isNull(f Field, p Product) bool {
	switch f {
	case FieldDiscount:
		return p.DiscountPercentage == nil
	case FieldSeason:
		return p.Season == nil
	}
	return false
}
