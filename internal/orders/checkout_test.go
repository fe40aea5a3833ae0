package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/prescriptions"
	"pharmacy-service/internal/products"
)

// fakeStore drives PlaceOrder without a database.
type fakeStore struct {
	address       *addresses.Address
	addressErr    error
	cart          *cart.Cart
	cartErr       error
	prescriptions []prescriptions.Prescription

	commitErr    error
	commitErrs   []error // consumed one per CommitOrder call when set
	commitCalls  int
	committed    *Order
	committedTo  string
}

func (f *fakeStore) AddressByIDAndOwner(ctx context.Context, addressID, userID string) (*addresses.Address, error) {
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	return f.address, nil
}

func (f *fakeStore) CartWithItems(ctx context.Context, userID string) (*cart.Cart, error) {
	return f.cart, f.cartErr
}

func (f *fakeStore) PrescriptionsByIDsAndOwner(ctx context.Context, ids []string, userID string) ([]prescriptions.Prescription, error) {
	return f.prescriptions, nil
}

func (f *fakeStore) CommitOrder(ctx context.Context, o *Order, cartID string) error {
	f.commitCalls++
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		if err != nil {
			return err
		}
	} else if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = o
	f.committedTo = cartID
	return nil
}

func (f *fakeStore) ListOrders(ctx context.Context, lf ListFilters) ([]Order, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) OrderByID(ctx context.Context, orderID string) (*Order, error) { return nil, nil }
func (f *fakeStore) UpdateOrder(ctx context.Context, orderID string, req UpdateOrderRequest) (*Order, error) {
	return nil, nil
}
func (f *fakeStore) MarkOrderPaid(ctx context.Context, orderID, paymentRef string) (*Order, error) {
	return nil, nil
}

func testCart(items ...cart.CartItem) *cart.Cart {
	return &cart.Cart{ID: "cart-1", UserID: "user-1", Items: items}
}

func testItem(id, price string, qty int, rx bool) cart.CartItem {
	return cart.CartItem{
		ID:        "ci-" + id,
		ProductID: id,
		Quantity:  qty,
		Product: products.Product{
			ID:                   id,
			Name:                 "product " + id,
			Price:                decimal.RequireFromString(price),
			RequiresPrescription: rx,
		},
	}
}

func baseRequest() CheckoutRequest {
	return CheckoutRequest{
		AddressID:      "addr-1",
		ShippingMethod: "standard",
		PaymentMethod:  "card",
	}
}

func TestPlaceOrder(t *testing.T) {
	addr := &addresses.Address{ID: "addr-1", UserID: "user-1"}

	t.Run("success freezes items and commits once", func(t *testing.T) {
		s := &fakeStore{
			address: addr,
			cart:    testCart(testItem("p1", "15.99", 1, false), testItem("p2", "5.99", 2, false)),
		}

		order, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		require.NoError(t, err)
		require.NotNil(t, order)

		assert.Equal(t, 1, s.commitCalls)
		assert.Equal(t, "cart-1", s.committedTo)
		assert.Equal(t, StatusPending, order.Status)
		assert.Equal(t, PaymentPending, order.PaymentStatus)
		assert.Equal(t, "27.97", order.Subtotal.StringFixed(2))
		assert.Equal(t, "4.99", order.ShippingCost.StringFixed(2))
		assert.Equal(t, "2.24", order.Tax.StringFixed(2))
		assert.Equal(t, "35.20", order.Total.StringFixed(2))

		require.Len(t, order.Items, 2)
		assert.Equal(t, "product p1", order.Items[0].Name)
		assert.Equal(t, "15.99", order.Items[0].Price.StringFixed(2))
		assert.Equal(t, 2, order.Items[1].Quantity)
		for _, it := range order.Items {
			assert.NotEmpty(t, it.ID)
			assert.Equal(t, order.ID, it.OrderID)
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		s := &fakeStore{address: addr, cart: testCart()}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		assert.ErrorIs(t, err, ErrEmptyCart)
		assert.Zero(t, s.commitCalls)
	})

	t.Run("missing cart row behaves like empty cart", func(t *testing.T) {
		s := &fakeStore{address: addr}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("address not owned", func(t *testing.T) {
		s := &fakeStore{addressErr: ErrAddressNotFound}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		assert.ErrorIs(t, err, ErrAddressNotFound)
	})

	t.Run("prescription item without prescription ids", func(t *testing.T) {
		s := &fakeStore{
			address: addr,
			cart:    testCart(testItem("p1", "9.99", 1, true)),
		}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		assert.ErrorIs(t, err, ErrPrescriptionRequired)
		assert.Zero(t, s.commitCalls)
	})

	t.Run("prescription id not owned by user", func(t *testing.T) {
		s := &fakeStore{
			address:       addr,
			cart:          testCart(testItem("p1", "9.99", 1, true)),
			prescriptions: nil, // lookup returns fewer rows than requested
		}
		req := baseRequest()
		req.PrescriptionIDs = []string{"rx-1"}

		_, err := PlaceOrder(context.Background(), s, "user-1", req)
		assert.ErrorIs(t, err, ErrPrescriptionNotFound)
	})

	t.Run("prescription not approved", func(t *testing.T) {
		s := &fakeStore{
			address: addr,
			cart:    testCart(testItem("p1", "9.99", 1, true)),
			prescriptions: []prescriptions.Prescription{
				{ID: "rx-1", UserID: "user-1", Status: prescriptions.StatusPending},
			},
		}
		req := baseRequest()
		req.PrescriptionIDs = []string{"rx-1"}

		_, err := PlaceOrder(context.Background(), s, "user-1", req)
		assert.ErrorIs(t, err, ErrPrescriptionNotApproved)
	})

	t.Run("approved prescription unlocks the whole cart", func(t *testing.T) {
		s := &fakeStore{
			address: addr,
			cart:    testCart(testItem("p1", "9.99", 1, true), testItem("p2", "3.50", 1, true)),
			prescriptions: []prescriptions.Prescription{
				{ID: "rx-1", UserID: "user-1", Status: prescriptions.StatusApproved},
			},
		}
		req := baseRequest()
		req.PrescriptionIDs = []string{"rx-1"}

		order, err := PlaceOrder(context.Background(), s, "user-1", req)
		require.NoError(t, err)
		require.Len(t, order.Prescriptions, 1)
		assert.Equal(t, "rx-1", order.Prescriptions[0].ID)
	})

	t.Run("unknown shipping method", func(t *testing.T) {
		s := &fakeStore{
			address: addr,
			cart:    testCart(testItem("p1", "9.99", 1, false)),
		}
		req := baseRequest()
		req.ShippingMethod = "drone"

		_, err := PlaceOrder(context.Background(), s, "user-1", req)
		assert.ErrorIs(t, err, ErrInvalidShippingMethod)
	})

	t.Run("insufficient stock aborts without an order", func(t *testing.T) {
		s := &fakeStore{
			address:   addr,
			cart:      testCart(testItem("p1", "9.99", 5, false)),
			commitErr: &InsufficientStockError{ProductID: "p1", Requested: 5},
		}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "p1", stockErr.ProductID)
		assert.Nil(t, s.committed)
	})

	t.Run("order number collision retries with a fresh number", func(t *testing.T) {
		s := &fakeStore{
			address:    addr,
			cart:       testCart(testItem("p1", "9.99", 1, false)),
			commitErrs: []error{ErrOrderNumberTaken, nil},
		}

		order, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		require.NoError(t, err)
		assert.Equal(t, 2, s.commitCalls)
		assert.NotEmpty(t, order.OrderNumber)
	})

	t.Run("collision retries are bounded", func(t *testing.T) {
		s := &fakeStore{
			address:   addr,
			cart:      testCart(testItem("p1", "9.99", 1, false)),
			commitErr: ErrOrderNumberTaken,
		}

		_, err := PlaceOrder(context.Background(), s, "user-1", baseRequest())
		assert.ErrorIs(t, err, ErrOrderCommitFailed)
		assert.Equal(t, maxOrderNumberAttempts, s.commitCalls)
	})
}
