package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/prescriptions"
)

// Store is everything the checkout workflow needs from storage. CommitOrder
// must be atomic: either the order, its items and prescription links exist,
// inventory is decremented and the cart is empty, or none of it happened.
type Store interface {
	AddressByIDAndOwner(ctx context.Context, addressID, userID string) (*addresses.Address, error)
	CartWithItems(ctx context.Context, userID string) (*cart.Cart, error)
	PrescriptionsByIDsAndOwner(ctx context.Context, ids []string, userID string) ([]prescriptions.Prescription, error)
	CommitOrder(ctx context.Context, o *Order, cartID string) error

	ListOrders(ctx context.Context, f ListFilters) ([]Order, int, error)
	OrderByID(ctx context.Context, orderID string) (*Order, error)
	UpdateOrder(ctx context.Context, orderID string, req UpdateOrderRequest) (*Order, error)
	MarkOrderPaid(ctx context.Context, orderID, paymentRef string) (*Order, error)
}

// PlaceOrder runs the whole checkout: ownership and cart validation,
// prescription gating, pricing, then the atomic commit. On any error no
// state has changed.
func PlaceOrder(ctx context.Context, s Store, userID string, req CheckoutRequest) (*Order, error) {
	addr, err := s.AddressByIDAndOwner(ctx, req.AddressID, userID)
	if err != nil {
		return nil, err
	}

	crt, err := s.CartWithItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if crt == nil || len(crt.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Prescription gate. The gate is coarse: one approved prescription set
	// unlocks every prescription item in the cart, there is no per-line
	// binding.
	needsPrescription := false
	for _, item := range crt.Items {
		if item.Product.RequiresPrescription {
			needsPrescription = true
			break
		}
	}
	if needsPrescription && len(req.PrescriptionIDs) == 0 {
		return nil, ErrPrescriptionRequired
	}

	var linked []prescriptions.Prescription
	if len(req.PrescriptionIDs) > 0 {
		linked, err = s.PrescriptionsByIDsAndOwner(ctx, req.PrescriptionIDs, userID)
		if err != nil {
			return nil, err
		}
		if len(linked) != len(req.PrescriptionIDs) {
			return nil, ErrPrescriptionNotFound
		}
		for _, p := range linked {
			if p.Status != prescriptions.StatusApproved {
				return nil, ErrPrescriptionNotApproved
			}
		}
	}

	shipping, err := ShippingCost(req.ShippingMethod)
	if err != nil {
		return nil, err
	}
	subtotal, tax, total := PriceCart(crt.Items, shipping)

	now := time.Now().UTC()
	order := &Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		AddressID:      addr.ID,
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       subtotal,
		ShippingCost:   shipping,
		Tax:            tax,
		Total:          total,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
		Address:        addr,
		Prescriptions:  linked,
	}
	for _, item := range crt.Items {
		order.Items = append(order.Items, OrderItem{
			ID:                   uuid.NewString(),
			OrderID:              order.ID,
			ProductID:            item.ProductID,
			Name:                 item.Product.Name,
			Price:                item.Product.Price,
			Quantity:             item.Quantity,
			RequiresPrescription: item.Product.RequiresPrescription,
		})
	}

	// Order numbers collide rarely; regenerate and retry instead of
	// failing the whole checkout on a unique violation.
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber()
		err = s.CommitOrder(ctx, order, crt.ID)
		if errors.Is(err, ErrOrderNumberTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return order, nil
	}
	return nil, ErrOrderCommitFailed
}
