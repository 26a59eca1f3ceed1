package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/repository/payments_repo"
)

// OrderStatusSync is notified after a payment for an order has been recorded as successful.
type OrderStatusSync interface {
	PaymentSucceeded(ctx context.Context, payment *domain.PaymentRecord) error
}

// StatusReconciler applies verified notifications to the payment store.
type StatusReconciler struct {
	payments        payments_repo.PaymentRepository
	orderSync       OrderStatusSync
	defaultCurrency string
	logger          *zap.Logger
}

func NewStatusReconciler(
	payments payments_repo.PaymentRepository,
	orderSync OrderStatusSync,
	defaultCurrency string,
	logger *zap.Logger,
) *StatusReconciler {
	return &StatusReconciler{
		payments:        payments,
		orderSync:       orderSync,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Apply upserts the record for n.OrderID from the notification's fields. The
// record depends only on n, so replaying n leaves the record unchanged.
func (r *StatusReconciler) Apply(ctx context.Context, n *domain.Notification) (*domain.PaymentRecord, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(n.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, n.Amount)
	}
	currency := n.Currency
	if currency == "" {
		currency = r.defaultCurrency
	}

	record := &domain.PaymentRecord{
		OrderID:        n.OrderID,
		PaymentID:      n.PaymentID,
		Amount:         amount,
		Currency:       currency,
		Status:         domain.StatusFromGatewayCode(n.StatusCode),
		UserID:         n.UserID,
		PaymentMethod:  n.Method,
		CardHolderName: n.CardHolderName,
		CardNo:         n.CardNo,
	}

	stored, err := r.payments.UpsertByOrderID(ctx, record)
	if err != nil {
		r.logger.Error("Failed to upsert payment record",
			zap.String("order_id", n.OrderID),
			zap.String("payment_id", n.PaymentID),
			zap.Error(err))
		return nil, &domain.PersistenceError{Op: "upsert payment", Err: err}
	}

	if stored.Status == domain.PaymentStatusSuccess && r.orderSync != nil {
		if err := r.orderSync.PaymentSucceeded(ctx, stored); err != nil {
			r.logger.Error("Failed to schedule order status sync",
				zap.String("order_id", stored.OrderID),
				zap.Error(err))
			return nil, &domain.PersistenceError{Op: "schedule order sync", Err: err}
		}
	}

	r.logger.Info("Payment record reconciled",
		zap.String("order_id", stored.OrderID),
		zap.String("payment_id", stored.PaymentID),
		zap.String("status", string(stored.Status)),
		zap.String("amount", stored.Amount.String()),
		zap.String("currency", stored.Currency))
	return stored, nil
}
