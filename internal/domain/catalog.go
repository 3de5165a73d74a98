package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortNewest       SortKey = "newest"
	SortPriceLowHigh SortKey = "price-low-to-high"
	SortPriceHighLow SortKey = "price-high-to-low"
	SortRating       SortKey = "rating"
)

// ParseSortKey never fails: anything unrecognised sorts newest first.
func ParseSortKey(s string) SortKey {
	switch key := SortKey(s); key {
	case SortPriceLowHigh, SortPriceHighLow, SortRating, SortNewest:
		return key
	default:
		return SortNewest
	}
}

// ProductFilter narrows a catalog listing. Nil bounds are open.
type ProductFilter struct {
	Category  Category
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
	Search    string
	Sort      SortKey
}

func (f ProductFilter) Matches(p *Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.MinRating != nil && p.Rating < *f.MinRating {
		return false
	}
	if f.Search != "" {
		haystack := strings.ToLower(p.Name + " " + p.Description)
		for _, term := range strings.Fields(strings.ToLower(f.Search)) {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}
	return true
}

// SortProducts orders products in place. Ties fall back to id so listings are
// stable across calls.
func SortProducts(products []Product, key SortKey) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := &products[i], &products[j]
		switch key {
		case SortPriceLowHigh:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case SortPriceHighLow:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case SortRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}
