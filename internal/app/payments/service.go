package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/payhere"
	"storepay/internal/repository/notification_repo"
	"storepay/internal/repository/payments_repo"
)

// CheckoutHashRequest is what the storefront sends before redirecting to the gateway.
// Amount is invalid (not Valid) when the caller omitted it.
type CheckoutHashRequest struct {
	MerchantID string
	OrderID    string
	Amount     decimal.NullDecimal
	Currency   string
}

type PaymentService interface {
	GenerateCheckoutHash(ctx context.Context, req CheckoutHashRequest) (string, error)
	HandleNotification(ctx context.Context, n *domain.Notification) error
	GetPayment(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
}

type paymentService struct {
	engine          *payhere.Engine
	verifier        *NotificationVerifier
	reconciler      *StatusReconciler
	paymentRepo     payments_repo.PaymentRepository
	notificationLog notification_repo.NotificationLogRepository
	defaultCurrency string
	logger          *zap.Logger
}

// NewPaymentService wires the checkout hash and notification flows. orderSync and
// notificationLog may be nil.
func NewPaymentService(
	engine *payhere.Engine,
	paymentRepo payments_repo.PaymentRepository,
	orderSync OrderStatusSync,
	notificationLog notification_repo.NotificationLogRepository,
	defaultCurrency string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		engine:          engine,
		verifier:        NewNotificationVerifier(engine, logger.With(zap.String("component", "NotificationVerifier"))),
		reconciler:      NewStatusReconciler(paymentRepo, orderSync, defaultCurrency, logger.With(zap.String("component", "StatusReconciler"))),
		paymentRepo:     paymentRepo,
		notificationLog: notificationLog,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

func (s *paymentService) GenerateCheckoutHash(ctx context.Context, req CheckoutHashRequest) (string, error) {
	var missing []string
	if req.MerchantID == "" {
		missing = append(missing, "merchantId")
	}
	if req.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if !req.Amount.Valid || req.Amount.Decimal.IsZero() {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return "", &domain.ValidationError{MissingFields: missing}
	}

	if !s.engine.Configured() {
		s.logger.Error("Checkout hash requested but merchant secret is not configured",
			zap.String("order_id", req.OrderID))
		return "", domain.ErrMissingMerchantSecret
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	hash, err := s.engine.CheckoutHash(payhere.Fields{
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		Amount:     req.Amount.Decimal,
		Currency:   currency,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate checkout hash for order %s: %w", req.OrderID, err)
	}

	s.logger.Info("Checkout hash generated",
		zap.String("order_id", req.OrderID),
		zap.String("merchant_id", req.MerchantID),
		zap.String("amount", payhere.FormatAmount(req.Amount.Decimal)),
		zap.String("currency", currency))
	return hash, nil
}

// HandleNotification logs n as received, verifies it and, when it is
// authentic, applies it to the payment record of n.OrderID. It returns domain.ErrSignatureMismatch for a
// rejected notification and a *domain.PersistenceError when the store failed.
func (s *paymentService) HandleNotification(ctx context.Context, n *domain.Notification) error {
	receivedAt := time.Now().UTC()
	s.recordNotification(ctx, n, domain.NotificationReceived, receivedAt)

	if !s.verifier.Verify(n) {
		s.recordNotification(ctx, n, domain.NotificationRejected, receivedAt)
		return domain.ErrSignatureMismatch
	}

	record, err := s.reconciler.Apply(ctx, n)
	if err != nil {
		s.recordNotification(ctx, n, domain.NotificationFailed, receivedAt)
		return fmt.Errorf("failed to reconcile notification for order %s: %w", n.OrderID, err)
	}

	s.recordNotification(ctx, n, domain.NotificationApplied, receivedAt)
	s.logger.Info("Payment notification applied",
		zap.String("order_id", record.OrderID),
		zap.String("payment_id", record.PaymentID),
		zap.String("status_code", n.StatusCode),
		zap.String("status", string(record.Status)))
	return nil
}

func (s *paymentService) GetPayment(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	p, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to load payment", zap.String("order_id", orderID), zap.Error(err))
		return nil, &domain.PersistenceError{Op: "get payment", Err: err}
	}
	return p, nil
}

// recordNotification writes the audit row for n. Failures are logged only.
func (s *paymentService) recordNotification(ctx context.Context, n *domain.Notification, outcome domain.NotificationOutcome, receivedAt time.Time) {
	if s.notificationLog == nil {
		return
	}
	redacted := *n
	redacted.Signature = ""
	payload, err := json.Marshal(redacted)
	if err != nil {
		s.logger.Warn("Failed to encode notification for audit log", zap.String("order_id", n.OrderID), zap.Error(err))
		return
	}

	entry := &domain.NotificationLogEntry{
		ID:         uuid.NewString(),
		OrderID:    n.OrderID,
		PaymentID:  n.PaymentID,
		StatusCode: n.StatusCode,
		Outcome:    outcome,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
	if err := s.notificationLog.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record payment notification",
			zap.String("order_id", n.OrderID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}
