package kafka

import "time"

const (
	TopicAccountCreated       = `pharmacy.account-created`
	TopicOrderCreated         = `pharmacy.order-created`
	TopicOrderPaid            = `pharmacy.order-paid`
	TopicPrescriptionReviewed = `pharmacy.prescription-reviewed`
)

// Events published for downstream consumers (fulfilment, notifications).

type AccountCreatedEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Total       string    `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type PrescriptionReviewedEvent struct {
	PrescriptionID string    `json:"prescription_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	ReviewedBy     string    `json:"reviewed_by"`
	ReviewedAt     time.Time `json:"reviewed_at"`
}
