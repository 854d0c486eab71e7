package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gender enumerates the audience a garment is cut for.
type Gender string

const (
	GenderMen    Gender = "MEN"
	GenderWomen  Gender = "WOMEN"
	GenderUnisex Gender = "UNISEX"
	GenderKids   Gender = "KIDS"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	switch g {
	case GenderMen, GenderWomen, GenderUnisex, GenderKids:
		return true
	}
	return false
}

// Season enumerates the season a garment is sold for.
type Season string

const (
	SeasonSpring    Season = "SPRING"
	SeasonSummer    Season = "SUMMER"
	SeasonAutumn    Season = "AUTUMN"
	SeasonWinter    Season = "WINTER"
	SeasonAllSeason Season = "ALL_SEASON"
)

// Valid reports whether s is a known season.
func (s Season) Valid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter, SeasonAllSeason:
		return true
	}
	return false
}

// ParseGender normalises user input into a Gender.
func ParseGender(raw string) (Gender, bool) {
	g := Gender(strings.ToUpper(strings.TrimSpace(raw)))
	return g, g.Valid()
}

// ParseSeason normalises user input into a Season.
func ParseSeason(raw string) (Season, bool) {
	s := Season(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Product is the catalog entity. Version is owned by the store and bumped on
// every successful write.
type Product struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Price              decimal.Decimal  `json:"price"`
	StockQuantity      int              `json:"stockQuantity"`
	Category           string           `json:"category"`
	Brand              string           `json:"brand"`
	Material           string           `json:"material"`
	Gender             Gender           `json:"gender"`
	Season             *Season          `json:"season,omitempty"`
	ImageURLs          []string         `json:"imageUrls"`
	Sizes              []string         `json:"availableSizes"`
	Colors             []string         `json:"availableColors"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	ViewCount          int64            `json:"viewCount"`
	SKU                string           `json:"sku"`
	Active             bool             `json:"active"`
	Deleted            bool             `json:"deleted"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	DeletedAt          *time.Time       `json:"deletedAt,omitempty"`
	Version            int64            `json:"version"`
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (p Product) Clone() Product {
	out := p
	out.ImageURLs = append([]string(nil), p.ImageURLs...)
	out.Sizes = append([]string(nil), p.Sizes...)
	out.Colors = append([]string(nil), p.Colors...)
	if p.Season != nil {
		s := *p.Season
		out.Season = &s
	}
	if p.DiscountPercentage != nil {
		d := *p.DiscountPercentage
		out.DiscountPercentage = &d
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// ProductInput carries the client-settable fields for create and update.
// On update, nil collections leave the stored collection untouched.
type ProductInput struct {
	Name               string           `json:"name" validate:"required,max=255"`
	Description        string           `json:"description" validate:"max=5000"`
	Price              decimal.Decimal  `json:"price"`
	StockQuantity      int              `json:"stockQuantity" validate:"gte=0"`
	Category           string           `json:"category" validate:"required,max=100"`
	Brand              string           `json:"brand" validate:"required,max=100"`
	Material           string           `json:"material" validate:"max=100"`
	Gender             Gender           `json:"gender" validate:"required"`
	Season             *Season          `json:"season"`
	ImageURLs          []string         `json:"imageUrls" validate:"omitempty,dive,url"`
	Sizes              []string         `json:"availableSizes" validate:"omitempty,dive,required"`
	Colors             []string         `json:"availableColors" validate:"omitempty,dive,required"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage"`
	SKU                string           `json:"sku" validate:"max=64"`
	Active             *bool            `json:"active"`
}

// Filter describes a product search. Every field is optional; nil means no
// constraint on that dimension.
type Filter struct {
	SearchTerm      *string          `json:"searchTerm,omitempty"`
	MinPrice        *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice        *decimal.Decimal `json:"maxPrice,omitempty"`
	Category        *string          `json:"category,omitempty"`
	Brand           *string          `json:"brand,omitempty"`
	Gender          *Gender          `json:"gender,omitempty"`
	Season          *Season          `json:"season,omitempty"`
	InStock         *bool            `json:"inStock,omitempty"`
	HasDiscount     *bool            `json:"hasDiscount,omitempty"`
	IncludeInactive *bool            `json:"includeInactive,omitempty"`
}

// Sort keys accepted by PageRequest.
const (
	SortByID            = "id"
	SortByName          = "name"
	SortByPrice         = "price"
	SortByStockQuantity = "stockQuantity"
	SortByCategory      = "category"
	SortByBrand         = "brand"
	SortByViewCount     = "viewCount"
	SortByCreatedAt     = "createdAt"
	SortByUpdatedAt     = "updatedAt"

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

var sortKeys = map[string]struct{}{
	SortByID: {}, SortByName: {}, SortByPrice: {}, SortByStockQuantity: {}, SortByCategory: {},
	SortByBrand: {}, SortByViewCount: {}, SortByCreatedAt: {}, SortByUpdatedAt: {},
}

// PageRequest selects one page of results. Page is zero based.
type PageRequest struct {
	Page          int    `json:"page"`
	Size          int    `json:"size"`
	SortKey       string `json:"sortKey"`
	SortDirection string `json:"sortDirection"`
}

// Normalized fills defaults: size 10, sort by id, ascending unless a direction
// is given. Validation happens separately.
func (r PageRequest) Normalized() PageRequest {
	if r.Size == 0 {
		r.Size = DefaultPageSize
	}
	if r.SortKey == "" {
		r.SortKey = SortByID
	}
	r.SortDirection = strings.ToLower(r.SortDirection)
	if r.SortDirection == "" {
		r.SortDirection = SortAsc
	}
	return r
}

// Offset returns the number of rows skipped before this page.
func (r PageRequest) Offset() int {
	return r.Page * r.Size
}

// Page is one slice of an ordered result set.
type Page struct {
	Content       []Product `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int64     `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	First         bool      `json:"first"`
	Last          bool      `json:"last"`
}

// NewPage computes pagination metadata for content.
func NewPage(content []Product, req PageRequest, total int64) Page {
	if content == nil {
		content = []Product{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         req.Page == 0,
		Last:          req.Page >= totalPages-1,
	}
}

// normalizeSet de-duplicates values, drops blanks and sorts the result.
func normalizeSet(values []string) []string {
	out := uniqueStrings(values)
	sort.Strings(out)
	return out
}

// uniqueStrings trims values and drops blanks and repeats, keeping first-seen
// order. A nil input stays nil.
func uniqueStrings(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
