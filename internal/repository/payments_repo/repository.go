package payments_repo

import (
	"context"

	"storepay/internal/domain"
)

// PaymentRepository persists payment records keyed by order id.
type PaymentRepository interface {
	// UpsertByOrderID creates the record for payment.OrderID if absent, otherwise
	// overwrites its mutable fields in a single store operation, and returns the
	// stored record. ID and CreatedAt are kept from the first write.
	UpsertByOrderID(ctx context.Context, payment *domain.PaymentRecord) (*domain.PaymentRecord, error)
	// GetByOrderID returns domain.ErrPaymentNotFound when no record exists.
	GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
}
