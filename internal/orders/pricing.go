package orders

import (
	"github.com/shopspring/decimal"

	"pharmacy-service/internal/cart"
)

// Flat shipping rate table. Unknown methods are rejected rather than
// silently falling back to standard.
var shippingRates = map[string]decimal.Decimal{
	"standard": decimal.RequireFromString("4.99"),
	"express":  decimal.RequireFromString("9.99"),
}

// taxRate is applied to the subtotal; the result is rounded half away from
// zero to cents before entering the total.
var taxRate = decimal.RequireFromString("0.08")

// ShippingCost returns the flat rate for the method.
func ShippingCost(method string) (decimal.Decimal, error) {
	rate, ok := shippingRates[method]
	if !ok {
		return decimal.Decimal{}, ErrInvalidShippingMethod
	}
	return rate, nil
}

// PriceCart computes subtotal, tax and total for the cart with exact
// decimal arithmetic. Every figure is rounded to cents before summation so
// subtotal + shipping + tax == total holds exactly.
func PriceCart(items []cart.CartItem, shipping decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		line := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)
	tax = subtotal.Mul(taxRate).Round(2)
	total = subtotal.Add(shipping).Add(tax)
	return subtotal, tax, total
}
