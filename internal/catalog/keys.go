package catalog

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cache key prefixes. Every listing key starts with productsPrefix and every
// single-item key with productPrefix, so broad invalidation is two prefix drops.
const (
	productPrefix  = "product:"
	productsPrefix = "products:"
	absent         = "-"
)

// ProductKey identifies a single-product entry.
func ProductKey(id uuid.UUID) string {
	return productPrefix + id.String()
}

// ListKey identifies an unfiltered listing page.
func ListKey(includeInactive bool, req PageRequest) string {
	return productsPrefix + "all:" + strconv.FormatBool(includeInactive) + ":" + pageShape(req)
}

// CategoryKey identifies a category listing page.
func CategoryKey(category string, req PageRequest) string {
	return productsPrefix + "category:" + strconv.Quote(category) + ":" + pageShape(req)
}

// BrandKey identifies a brand listing page.
func BrandKey(brand string, req PageRequest) string {
	return productsPrefix + "brand:" + strconv.Quote(brand) + ":" + pageShape(req)
}

// SearchKey identifies a filtered search page. Filters that compile to the same
// predicate set share a key; every other difference yields a distinct key.
func SearchKey(f Filter, req PageRequest) string {
	return productsPrefix + "filter:" + canonicalFilter(f) + ":" + pageShape(req)
}

func pageShape(req PageRequest) string {
	req = req.Normalized()
	return "page=" + strconv.Itoa(req.Page) +
		":size=" + strconv.Itoa(req.Size) +
		":sort=" + strconv.Quote(req.SortKey) + "," + req.SortDirection
}

// canonicalFilter encodes every field in a fixed order. Text values are quoted
// so separators inside user input cannot forge a different key.
func canonicalFilter(f Filter) string {
	var sb strings.Builder
	write := func(name, value string) {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(value)
	}

	term := absent
	if nonEmpty(f.SearchTerm) {
		term = strconv.Quote(strings.ToLower(*f.SearchTerm))
	}
	write("q", term)
	write("min", decimalToken(f.MinPrice))
	write("max", decimalToken(f.MaxPrice))
	write("category", textToken(f.Category))
	write("brand", textToken(f.Brand))
	gender := absent
	if f.Gender != nil {
		gender = strconv.Quote(string(*f.Gender))
	}
	write("gender", gender)
	season := absent
	if f.Season != nil {
		season = strconv.Quote(string(*f.Season))
	}
	write("season", season)
	write("inStock", strconv.FormatBool(isTrue(f.InStock)))
	write("hasDiscount", strconv.FormatBool(isTrue(f.HasDiscount)))
	write("includeInactive", strconv.FormatBool(isTrue(f.IncludeInactive)))
	return sb.String()
}

func textToken(s *string) string {
	if !nonEmpty(s) {
		return absent
	}
	return strconv.Quote(*s)
}

// decimalToken uses the trimmed decimal form so 10 and 10.00 share a key.
func decimalToken(d *decimal.Decimal) string {
	if d == nil {
		return absent
	}
	return d.String()
}
