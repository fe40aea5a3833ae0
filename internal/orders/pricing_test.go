package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/products"
)

func item(price string, qty int) cart.CartItem {
	return cart.CartItem{
		Quantity: qty,
		Product:  products.Product{Price: decimal.RequireFromString(price)},
	}
}

func TestShippingCost(t *testing.T) {
	standard, err := ShippingCost("standard")
	require.NoError(t, err)
	assert.True(t, standard.Equal(decimal.RequireFromString("4.99")))

	express, err := ShippingCost("express")
	require.NoError(t, err)
	assert.True(t, express.Equal(decimal.RequireFromString("9.99")))

	_, err = ShippingCost("overnight")
	assert.ErrorIs(t, err, ErrInvalidShippingMethod)

	_, err = ShippingCost("")
	assert.ErrorIs(t, err, ErrInvalidShippingMethod)
}

func TestPriceCart(t *testing.T) {
	shipping := decimal.RequireFromString("4.99")

	t.Run("single item", func(t *testing.T) {
		subtotal, tax, total := PriceCart([]cart.CartItem{item("15.99", 1)}, shipping)

		assert.Equal(t, "15.99", subtotal.StringFixed(2))
		assert.Equal(t, "1.28", tax.StringFixed(2))
		assert.Equal(t, "22.26", total.StringFixed(2))
	})

	t.Run("multiple quantities", func(t *testing.T) {
		subtotal, tax, total := PriceCart([]cart.CartItem{item("5.99", 2)}, shipping)

		assert.Equal(t, "11.98", subtotal.StringFixed(2))
		assert.Equal(t, "0.96", tax.StringFixed(2))
		assert.Equal(t, "17.93", total.StringFixed(2))
	})

	t.Run("total is exact sum of parts", func(t *testing.T) {
		items := []cart.CartItem{item("3.33", 3), item("0.01", 7), item("19.99", 2)}
		subtotal, tax, total := PriceCart(items, shipping)

		assert.True(t, subtotal.Add(shipping).Add(tax).Equal(total),
			"subtotal %s + shipping %s + tax %s != total %s", subtotal, shipping, tax, total)
	})

	t.Run("empty cart prices to shipping only", func(t *testing.T) {
		subtotal, tax, total := PriceCart(nil, shipping)

		assert.True(t, subtotal.IsZero())
		assert.True(t, tax.IsZero())
		assert.True(t, total.Equal(shipping))
	})
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber()
	require.Len(t, n, 14)
	assert.Equal(t, "ORD-", n[:4])
	for _, r := range n[4:] {
		assert.True(t, r >= '0' && r <= '9', "unexpected rune %q in %s", r, n)
	}
}
