package outbox_repo

import (
	"context"

	"storepay/internal/domain"
)

type OutboxRepository interface {
	// CreateMessage stores msg; a message whose id already exists is left untouched.
	CreateMessage(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	// GetPendingMessages locks up to limit pending rows; querier must be a transaction.
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSent(ctx context.Context, querier domain.Querier, ids []string) error
}
