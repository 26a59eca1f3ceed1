package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/repository/order_repo"
)

const orderStatusPaid = "paid"

type pgOrderRepository struct {
	db     domain.Querier
	logger *zap.Logger
}

func NewOrderRepository(db domain.Querier, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string) error {
	query := `UPDATE orders SET status = $2, payment_id = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, orderID, orderStatusPaid, paymentID, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to mark order as paid", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to mark order %s as paid: %w", orderID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return order_repo.ErrOrderNotFound
	}
	r.logger.Debug("Order marked as paid", zap.String("order_id", orderID), zap.String("payment_id", paymentID))
	return nil
}
