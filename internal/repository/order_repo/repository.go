package order_repo

import (
	"context"
	"errors"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	// MarkPaid sets the order's status to paid and records the gateway payment id.
	// It returns ErrOrderNotFound when no order has orderID.
	MarkPaid(ctx context.Context, orderID, paymentID string) error
}
