package postgres

import (
	"context"
	"fmt"

	"storepay/internal/domain"
)

type NotificationLogRepository struct {
	db domain.Querier
}

func NewNotificationLogRepository(db domain.Querier) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

func (r *NotificationLogRepository) Record(ctx context.Context, entry *domain.NotificationLogEntry) error {
	query := `
		INSERT INTO payment_notifications (id, order_id, payment_id, status_code, outcome, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.PaymentID,
		entry.StatusCode,
		string(entry.Outcome),
		string(entry.Payload),
		entry.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification for order %s: %w", entry.OrderID, err)
	}
	return nil
}
