package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusSuccess     PaymentStatus = "success"
	PaymentStatusFailed      PaymentStatus = "failed"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusChargedback PaymentStatus = "chargedback"
)

// IsTerminal reports whether the status is not expected to change under normal
// operation. Nothing enforces it: any verified notification may overwrite any status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusChargedback
}

// GatewayStatusCode is the numeric status_code posted by PayHere.
type GatewayStatusCode int

const (
	GatewayStatusSuccess     GatewayStatusCode = 2
	GatewayStatusPending     GatewayStatusCode = 0
	GatewayStatusCancelled   GatewayStatusCode = -1
	GatewayStatusFailed      GatewayStatusCode = -2
	GatewayStatusChargedback GatewayStatusCode = -3
)

// StatusFromGatewayCode maps a raw gateway status code to an internal status.
// Codes that are not integers, or integers outside the published table, are
// treated as pending.
func StatusFromGatewayCode(raw string) PaymentStatus {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return PaymentStatusPending
	}
	switch GatewayStatusCode(n) {
	case GatewayStatusSuccess:
		return PaymentStatusSuccess
	case GatewayStatusPending:
		return PaymentStatusPending
	case GatewayStatusCancelled:
		return PaymentStatusCancelled
	case GatewayStatusFailed:
		return PaymentStatusFailed
	case GatewayStatusChargedback:
		return PaymentStatusChargedback
	default:
		return PaymentStatusPending
	}
}

// PaymentRecord is the persisted outcome of the last accepted notification for an order.
type PaymentRecord struct {
	ID             string
	OrderID        string
	PaymentID      string
	Amount         decimal.Decimal
	Currency       string
	Status         PaymentStatus
	UserID         string
	PaymentMethod  string
	CardHolderName string
	CardNo         string
	CreatedAt      time.Time
}
