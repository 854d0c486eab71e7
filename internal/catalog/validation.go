package catalog

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const moneyScale = 2

var (
	validate    = newValidator()
	maxDiscount = decimal.NewFromInt(100)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateInput(in ProductInput) error {
	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), describe(fe))
		}
	}
	if in.Price.IsNegative() {
		verr.add("price", "must be greater than or equal to 0")
	}
	if in.Gender != "" && !in.Gender.Valid() {
		verr.add("gender", "unknown gender")
	}
	if in.Season != nil && !in.Season.Valid() {
		verr.add("season", "unknown season")
	}
	if !hasMoneyScale(in.Price) {
		verr.add("price", "must have at most 2 decimal places")
	}
	if d := in.DiscountPercentage; d != nil {
		if d.IsNegative() || d.GreaterThan(maxDiscount) {
			verr.add("discountPercentage", "must be between 0 and 100")
		}
		if !hasMoneyScale(*d) {
			verr.add("discountPercentage", "must have at most 2 decimal places")
		}
	}
	return verr.errOrNil()
}

// hasMoneyScale reports whether d fits the NUMERIC(_, 2) columns without
// rounding. Trailing zeros are allowed.
func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}

func validateImageURLs(urls []string) error {
	verr := &ValidationError{}
	for i, u := range urls {
		if err := validate.Var(u, "required,url"); err != nil {
			verr.add(fmt.Sprintf("imageUrls[%d]", i), "must be a valid URL")
		}
	}
	return verr.errOrNil()
}

func validatePage(req PageRequest) error {
	verr := &ValidationError{}
	if req.Page < 0 {
		verr.add("page", "must be greater than or equal to 0")
	}
	if req.Size < 1 || req.Size > MaxPageSize {
		verr.add("size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	} else if req.Page > (math.MaxInt-req.Size)/req.Size {
		verr.add("page", "is too large")
	}
	if _, ok := sortKeys[req.SortKey]; !ok {
		verr.add("sortBy", "unsupported sort key")
	}
	if req.SortDirection != SortAsc && req.SortDirection != SortDesc {
		verr.add("sortDirection", "must be asc or desc")
	}
	return verr.errOrNil()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
