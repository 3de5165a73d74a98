package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, matching what browser clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// ArtisanSummary is the seller card embedded in every product. It is derived
// from the owning user record whenever a product is read.
type ArtisanSummary struct {
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Avatar     string  `json:"avatar,omitempty"`
	TotalSales int     `json:"totalSales"`
	Rating     float64 `json:"rating"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required,max=100"`
	Price       decimal.Decimal `json:"price" validate:"gte=0,lte=9999999999.99"`
	Images      []string        `json:"images" validate:"min=1,dive,required"`
	Rating      float64         `json:"rating" validate:"gte=0,lte=5"`
	Reviews     int             `json:"reviews" validate:"gte=0,lte=2147483647"`
	Artisan     ArtisanSummary  `json:"artisan"`
	Category    Category        `json:"category" validate:"category"`
	Description string          `json:"description" validate:"required,max=2000"`
	Features    []string        `json:"features"`
	Stock       int             `json:"stock" validate:"gte=0,lte=2147483647"`
	ArtisanID   string          `json:"artisanId" validate:"required"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
