package notification_repo

import (
	"context"

	"storepay/internal/domain"
)

// NotificationLogRepository keeps an audit trail of inbound gateway notifications.
type NotificationLogRepository interface {
	Record(ctx context.Context, entry *domain.NotificationLogEntry) error
}
