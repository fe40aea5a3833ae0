package cart

import (
	"time"

	"pharmacy-service/internal/products"
)

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem carries the live product record alongside the quantity so the
// storefront and the checkout both price against current data.
type CartItem struct {
	ID        string           `json:"id"`
	CartID    string           `json:"cart_id"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   products.Product `json:"product"`
}
