package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/prescriptions"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func IsValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func IsValidPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// OrderItem is a frozen copy of the product at commit time. Later product
// edits never change it.
type OrderItem struct {
	ID                   string          `json:"id"`
	OrderID              string          `json:"order_id"`
	ProductID            string          `json:"product_id"`
	Name                 string          `json:"name"`
	Price                decimal.Decimal `json:"price"`
	Quantity             int             `json:"quantity"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	AddressID      string          `json:"address_id"`
	ShippingMethod string          `json:"shipping_method"`
	PaymentMethod  string          `json:"payment_method"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentRef     string          `json:"payment_ref,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Address       *addresses.Address           `json:"address,omitempty"`
	Prescriptions []prescriptions.Prescription `json:"prescriptions,omitempty"`
}

// CheckoutRequest is the JSON payload for POST /orders/checkout.
type CheckoutRequest struct {
	AddressID       string   `json:"address_id" validate:"required"`
	ShippingMethod  string   `json:"shipping_method" validate:"required"`
	PaymentMethod   string   `json:"payment_method" validate:"required"`
	Notes           string   `json:"notes"`
	PrescriptionIDs []string `json:"prescription_ids"`
}

// UpdateOrderRequest carries the administrative mutations allowed after an
// order exists. Empty fields stay unchanged.
type UpdateOrderRequest struct {
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	TrackingNumber string `json:"tracking_number"`
}

// ListFilters scopes order listing. Empty UserID means all users (admin).
type ListFilters struct {
	UserID string
	Status string
	Limit  int
	Offset int
}
