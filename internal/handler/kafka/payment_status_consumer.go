package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storepay/internal/domain/event"
	kafka_infra "storepay/internal/infrastructure/kafka"
	"storepay/internal/repository/order_repo"
)

// PaymentStatusMessageHandler marks orders paid for successful payment events.
// Malformed messages and unknown orders are acknowledged so they do not block
// the partition; store failures are returned so the offset is not committed.
func PaymentStatusMessageHandler(orders order_repo.OrderRepository, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var statusEvent event.PaymentStatusUpdateEvent
		if err := json.Unmarshal(msg.Value, &statusEvent); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to PaymentStatusUpdateEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}
		if statusEvent.OrderID == "" {
			logger.Warn("Payment status event without order id, skipping", zap.Int64("offset", msg.Offset))
			return nil
		}

		if statusEvent.Status != event.StatusSuccess {
			logger.Debug("Ignoring non-success payment status event",
				zap.String("order_id", statusEvent.OrderID),
				zap.String("status", statusEvent.Status))
			return nil
		}

		err := orders.MarkPaid(ctx, statusEvent.OrderID, statusEvent.PaymentID)
		if errors.Is(err, order_repo.ErrOrderNotFound) {
			logger.Warn("Payment succeeded for unknown order, skipping",
				zap.String("order_id", statusEvent.OrderID),
				zap.String("payment_id", statusEvent.PaymentID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to mark order %s as paid: %w", statusEvent.OrderID, err)
		}

		logger.Info("Order marked as paid",
			zap.String("order_id", statusEvent.OrderID),
			zap.String("payment_id", statusEvent.PaymentID),
			zap.String("amount", statusEvent.Amount),
			zap.String("currency", statusEvent.Currency),
		)
		return nil
	}
}
