package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A nil return commits the offset.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	topic   string
	groupID string
	logger  *zap.Logger
}

func NewConsumer(brokerURLs []string, topic, groupID string, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                brokerURLs,
		GroupID:                groupID,
		Topic:                  topic,
		MinBytes:               1,
		MaxBytes:               10e6,
		ReadBatchTimeout:       1 * time.Second,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
		HeartbeatInterval:      3 * time.Second,
		PartitionWatchInterval: 5 * time.Second,
		MaxAttempts:            3,
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		topic:   topic,
		groupID: groupID,
		logger:  logger,
	}
}

// Consume blocks until ctx is cancelled. A message whose handler fails is not
// committed and is fetched again after a pause.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting", zap.String("topic", c.topic), zap.String("group_id", c.groupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("Error handling Kafka message, will not commit offset",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit offset for Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
