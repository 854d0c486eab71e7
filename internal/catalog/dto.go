package catalog

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garmentshop/catalog/internal/platform/httpx"
)

// updateRequest is the PUT body: the product fields plus an optional version
// the client based its edit on.
type updateRequest struct {
	ProductInput
	ExpectedVersion *int64 `json:"expectedVersion"`
}

type imagesRequest struct {
	ImageURLs []string `json:"imageUrls"`
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

// queryReader collects parse failures for query parameters into one
// ValidationError.
type queryReader struct {
	values url.Values
	errs   ValidationError
}

func newQueryReader(r *http.Request) *queryReader {
	return &queryReader{values: r.URL.Query()}
}

func (q *queryReader) intParam(name string, def int) int {
	raw := strings.TrimSpace(q.values.Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.errs.add(name, "must be an integer")
		return def
	}
	return n
}

func (q *queryReader) boolParam(name string) *bool {
	raw := strings.TrimSpace(q.values.Get(name))
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs.add(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *queryReader) stringParam(name string) *string {
	raw := strings.TrimSpace(q.values.Get(name))
	if raw == "" {
		return nil
	}
	return &raw
}

func (q *queryReader) decimalParam(name string) *decimal.Decimal {
	raw := strings.TrimSpace(q.values.Get(name))
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		q.errs.add(name, "must be a number")
		return nil
	}
	return &d
}

func (q *queryReader) genderParam(name string) *Gender {
	raw := q.stringParam(name)
	if raw == nil {
		return nil
	}
	g, ok := ParseGender(*raw)
	if !ok {
		q.errs.add(name, "unknown gender")
		return nil
	}
	return &g
}

func (q *queryReader) seasonParam(name string) *Season {
	raw := q.stringParam(name)
	if raw == nil {
		return nil
	}
	s, ok := ParseSeason(*raw)
	if !ok {
		q.errs.add(name, "unknown season")
		return nil
	}
	return &s
}

func (q *queryReader) page(defaultDirection string) PageRequest {
	req := PageRequest{
		Page:          q.intParam("page", 0),
		Size:          q.intParam("size", DefaultPageSize),
		SortKey:       SortByID,
		SortDirection: defaultDirection,
	}
	if s := q.stringParam("sortBy"); s != nil {
		req.SortKey = *s
	}
	if s := q.stringParam("sortDirection"); s != nil {
		req.SortDirection = strings.ToLower(*s)
	}
	return req
}

func (q *queryReader) filter() Filter {
	return Filter{
		SearchTerm:      q.stringParam("searchTerm"),
		MinPrice:        q.decimalParam("minPrice"),
		MaxPrice:        q.decimalParam("maxPrice"),
		Category:        q.stringParam("category"),
		Brand:           q.stringParam("brand"),
		Gender:          q.genderParam("gender"),
		Season:          q.seasonParam("season"),
		InStock:         q.boolParam("inStock"),
		HasDiscount:     q.boolParam("hasDiscount"),
		IncludeInactive: q.boolParam("includeInactive"),
	}
}

func (q *queryReader) err() error {
	return q.errs.errOrNil()
}

// parseIfMatch reads a version from an If-Match header such as `"3"` or
// `W/"3"`. An absent header yields nil.
func parseIfMatch(header string) (*int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	v, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return nil, invalid("If-Match", "must carry a product version")
	}
	return &v, nil
}

// toHTTPError translates catalog errors into their transport form.
func toHTTPError(err error) error {
	var (
		verr     *ValidationError
		stockErr *InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		return &httpx.Error{Status: http.StatusBadRequest, Title: "Validation Failed", Code: "VALIDATION_FAILED",
			Detail: verr.Error(), Fields: verr.Fields, Err: err}
	case errors.As(err, &stockErr):
		return &httpx.Error{Status: http.StatusBadRequest, Title: "Insufficient Stock", Code: "INSUFFICIENT_STOCK",
			Detail: stockErr.Error(), Fields: map[string]int{"requested": stockErr.Requested, "available": stockErr.Available}, Err: err}
	case errors.Is(err, ErrNotFound):
		return &httpx.Error{Status: http.StatusNotFound, Title: "Not Found", Code: "PRODUCT_NOT_FOUND", Detail: err.Error(), Err: err}
	case errors.Is(err, ErrVersionConflict):
		return &httpx.Error{Status: http.StatusConflict, Title: "Version Conflict", Code: "VERSION_CONFLICT",
			Detail: "the product was modified by another request; reload and retry", Err: err}
	case errors.Is(err, ErrStoreUnavailable):
		return &httpx.Error{Status: http.StatusServiceUnavailable, Title: "Service Unavailable", Code: "STORE_UNAVAILABLE", Err: err}
	default:
		return err
	}
}
