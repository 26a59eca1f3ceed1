package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/domain/event"
	"storepay/internal/payhere"
	"storepay/internal/repository/outbox_repo"
)

var messageNamespace = uuid.MustParse("6f1c2a4e-8b0d-4d5e-9a57-3c1f0b9e7d21")

// Writer enqueues payment status events for the order service.
type Writer struct {
	db         domain.Querier
	outboxRepo outbox_repo.OutboxRepository
	topic      string
	logger     *zap.Logger
	now        func() time.Time
}

func NewWriter(db domain.Querier, outboxRepo outbox_repo.OutboxRepository, topic string, logger *zap.Logger) *Writer {
	return &Writer{
		db:         db,
		outboxRepo: outboxRepo,
		topic:      topic,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PaymentSucceeded stores one event per (order, payment, status). Repeated
// calls for the same payment reuse the message id and are no-ops.
func (w *Writer) PaymentSucceeded(ctx context.Context, p *domain.PaymentRecord) error {
	msg, err := w.buildMessage(p, event.StatusSuccess)
	if err != nil {
		return err
	}
	if err := w.outboxRepo.CreateMessage(ctx, w.db, msg); err != nil {
		return fmt.Errorf("failed to enqueue payment status event for order %s: %w", p.OrderID, err)
	}
	w.logger.Info("Payment status event enqueued",
		zap.String("message_id", msg.ID),
		zap.String("order_id", p.OrderID),
		zap.String("payment_id", p.PaymentID))
	return nil
}

func (w *Writer) buildMessage(p *domain.PaymentRecord, status string) (*domain.OutboxMessage, error) {
	now := w.now()
	payload, err := json.Marshal(event.PaymentStatusUpdateEvent{
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Amount:    payhere.FormatAmount(p.Amount),
		Currency:  p.Currency,
		Status:    status,
		Timestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment status event: %w", err)
	}

	return &domain.OutboxMessage{
		ID:        MessageID(p.OrderID, p.PaymentID, status),
		OrderID:   p.OrderID,
		Topic:     w.topic,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: now,
	}, nil
}

// MessageID derives the outbox id from the event identity.
func MessageID(orderID, paymentID, status string) string {
	return uuid.NewSHA1(messageNamespace, []byte(orderID+"|"+paymentID+"|"+status)).String()
}
