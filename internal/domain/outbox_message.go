package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is an event waiting to be relayed to Kafka.
type OutboxMessage struct {
	ID        string
	OrderID   string
	Topic     string
	Payload   []byte
	Status    OutboxMessageStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
