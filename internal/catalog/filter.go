package catalog

import (
	"github.com/shopspring/decimal"
)

const maxSearchTermLength = 200

// Compile turns a filter into a conjunction of predicates. Each populated
// dimension contributes exactly one operand; unset dimensions contribute none.
// Compile has no side effects and may be called concurrently.
func Compile(f Filter) And {
	preds := And{}

	if !isTrue(f.IncludeInactive) {
		preds = append(preds, Cond{Field: FieldActive, Op: OpIsTrue})
	}
	if f.MinPrice != nil {
		preds = append(preds, Cond{Field: FieldPrice, Op: OpGte, Value: *f.MinPrice})
	}
	if f.MaxPrice != nil {
		preds = append(preds, Cond{Field: FieldPrice, Op: OpLte, Value: *f.MaxPrice})
	}
	if f.Gender != nil {
		preds = append(preds, Cond{Field: FieldGender, Op: OpEq, Value: string(*f.Gender)})
	}
	if f.Season != nil {
		preds = append(preds, Cond{Field: FieldSeason, Op: OpEq, Value: string(*f.Season)})
	}
	if nonEmpty(f.Brand) {
		preds = append(preds, Cond{Field: FieldBrand, Op: OpEq, Value: *f.Brand})
	}
	if nonEmpty(f.Category) {
		preds = append(preds, Cond{Field: FieldCategory, Op: OpEq, Value: *f.Category})
	}
	if nonEmpty(f.SearchTerm) {
		preds = append(preds, Or{
			Cond{Field: FieldName, Op: OpContainsFold, Value: *f.SearchTerm},
			Cond{Field: FieldDescription, Op: OpContainsFold, Value: *f.SearchTerm},
		})
	}
	if isTrue(f.InStock) {
		preds = append(preds, Cond{Field: FieldStockQuantity, Op: OpGt, Value: decimal.Zero})
	}
	if isTrue(f.HasDiscount) {
		preds = append(preds, And{
			Cond{Field: FieldDiscount, Op: OpNotNull},
			Cond{Field: FieldDiscount, Op: OpGt, Value: decimal.Zero},
		})
	}
	return preds
}

// ValidateFilter rejects filters that can never be compiled meaningfully.
func ValidateFilter(f Filter) error {
	verr := &ValidationError{}
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		verr.add("minPrice", "must be greater than or equal to 0")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		verr.add("maxPrice", "must be greater than or equal to 0")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		verr.add("minPrice", "must not exceed maxPrice")
	}
	if f.Gender != nil && !f.Gender.Valid() {
		verr.add("gender", "unknown gender")
	}
	if f.Season != nil && !f.Season.Valid() {
		verr.add("season", "unknown season")
	}
	if f.SearchTerm != nil && len(*f.SearchTerm) > maxSearchTermLength {
		verr.add("searchTerm", "too long")
	}
	return verr.errOrNil()
}

func listingPredicate(includeInactive bool) And {
	return Compile(Filter{IncludeInactive: &includeInactive})
}

func categoryPredicate(category string) And {
	return Compile(Filter{Category: &category})
}

func brandPredicate(brand string) And {
	return Compile(Filter{Brand: &brand})
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
