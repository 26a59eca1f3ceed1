package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"storepay/internal/domain"
	kafka_infra "storepay/internal/infrastructure/kafka"
	"storepay/internal/repository/outbox_repo"
)

const defaultBatchSize = 10

// Processor relays pending outbox messages to Kafka.
type Processor struct {
	db            *sql.DB
	outboxRepo    outbox_repo.OutboxRepository
	kafkaProducer kafka_infra.Producer
	pollInterval  time.Duration
	pollTimeout   time.Duration
	batchSize     int
	logger        *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	kafkaProducer kafka_infra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:            db,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		batchSize:     defaultBatchSize,
		logger:        logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopping.")
			return
		case <-ticker.C:
			p.processOutboxMessages(ctx)
		}
	}
}

// processOutboxMessages locks one batch inside a transaction, publishes it and
// marks the published prefix as sent.
func (p *Processor) processOutboxMessages(ctx context.Context) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		p.logger.Error("Failed to begin outbox transaction", zap.Error(err))
		return
	}
	defer tx.Rollback()

	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, p.batchSize)
	cancel()
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}
	p.logger.Info("Found pending outbox messages", zap.Int("count", len(messages)))

	sent := p.publish(ctx, messages)
	if len(sent) == 0 {
		return
	}

	if err := p.outboxRepo.MarkMessagesAsSent(ctx, tx, sent); err != nil {
		p.logger.Error("Failed to mark outbox messages as sent", zap.Strings("message_ids", sent), zap.Error(err))
		return
	}
	if err := tx.Commit(); err != nil {
		p.logger.Error("Failed to commit outbox transaction", zap.Error(err))
		return
	}
	p.logger.Info("Outbox messages relayed", zap.Int("count", len(sent)))
}

// publish sends messages in order and stops at the first failure so that
// events for one order are never reordered. It returns the ids that were sent.
func (p *Processor) publish(ctx context.Context, messages []domain.OutboxMessage) []string {
	sent := make([]string, 0, len(messages))
	for _, msg := range messages {
		if err := p.kafkaProducer.Produce(ctx, msg.Topic, msg.OrderID, msg.Payload); err != nil {
			p.logger.Error("Failed to send outbox message to Kafka",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			break
		}
		sent = append(sent, msg.ID)
	}
	return sent
}
