package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is a fixed-point decimal; float money
// is not allowed anywhere in the service.
type Product struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	Price                decimal.Decimal  `json:"price"`
	CompareAtPrice       *decimal.Decimal `json:"compare_at_price,omitempty"`
	SKU                  string           `json:"sku"`
	Barcode              string           `json:"barcode"`
	Inventory            int              `json:"inventory"`
	RequiresPrescription bool             `json:"requires_prescription"`
	CategoryID           string           `json:"category_id"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

type NewProduct struct {
	Name                 string           `json:"name" validate:"required"`
	Description          string           `json:"description" validate:"required"`
	Price                decimal.Decimal  `json:"price" validate:"required"`
	CompareAtPrice       *decimal.Decimal `json:"compare_at_price"`
	SKU                  string           `json:"sku"`
	Barcode              string           `json:"barcode"`
	Inventory            int              `json:"inventory" validate:"min=0"`
	RequiresPrescription bool             `json:"requires_prescription"`
	CategoryID           string           `json:"category_id" validate:"required"`
}

// ListFilters narrows ListProductsFromDB. Zero values mean "no filter".
type ListFilters struct {
	Query                string
	CategoryID           string
	CategorySlug         string
	MinPrice             *decimal.Decimal
	MaxPrice             *decimal.Decimal
	RequiresPrescription *bool
	Limit                int
	Offset               int
	Sort                 string
	Order                string
}
