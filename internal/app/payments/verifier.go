package payments

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/payhere"
)

// NotificationVerifier checks that a notification was signed with the merchant secret.
type NotificationVerifier struct {
	engine *payhere.Engine
	logger *zap.Logger
}

func NewNotificationVerifier(engine *payhere.Engine, logger *zap.Logger) *NotificationVerifier {
	return &NotificationVerifier{engine: engine, logger: logger}
}

// Verify reports whether n carries a valid md5sig. Any failure to compute the
// expected signature, including a missing secret, is a verification failure.
func (v *NotificationVerifier) Verify(n *domain.Notification) bool {
	amount, err := decimal.NewFromString(strings.TrimSpace(n.Amount))
	if err != nil {
		v.logger.Warn("Notification amount is not a number, rejecting",
			zap.String("order_id", n.OrderID),
			zap.String("payhere_amount", n.Amount))
		return false
	}

	ok, err := v.engine.Verify(payhere.Fields{
		MerchantID: n.MerchantID,
		OrderID:    n.OrderID,
		Amount:     amount,
		Currency:   n.Currency,
	}, n.StatusCode, n.Signature)
	if err != nil {
		v.logger.Error("Failed to compute notification signature, rejecting",
			zap.String("order_id", n.OrderID),
			zap.Error(err))
		return false
	}
	if !ok {
		v.logger.Warn("Notification signature mismatch",
			zap.String("order_id", n.OrderID),
			zap.String("merchant_id", n.MerchantID),
			zap.String("status_code", n.StatusCode))
	}
	return ok
}
