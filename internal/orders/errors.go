package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrAddressNotFound         = errors.New("address not found")
	ErrPrescriptionRequired    = errors.New("prescription required for some products")
	ErrPrescriptionNotFound    = errors.New("one or more prescriptions not found")
	ErrPrescriptionNotApproved = errors.New("one or more prescriptions are not approved")
	ErrInvalidShippingMethod   = errors.New("unknown shipping method")
	ErrOrderNumberTaken        = errors.New("order number already exists")
	ErrNotFound                = errors.New("order not found")

	// ErrOrderCommitFailed wraps any unexpected failure inside the commit
	// transaction. Nothing is persisted when it is returned.
	ErrOrderCommitFailed = errors.New("order commit failed")
)

// InsufficientStockError is returned when the guarded inventory decrement
// matches no row, meaning a concurrent order consumed the stock first.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}
