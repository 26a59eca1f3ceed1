package event

import "time"

// PaymentStatusUpdateEvent is published on the payment status topic for order synchronization.
type PaymentStatusUpdateEvent struct {
	PaymentID string    `json:"payment_id,omitempty"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id,omitempty"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	StatusSuccess = "SUCCESS"
)
