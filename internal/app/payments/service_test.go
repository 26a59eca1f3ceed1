package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/domain"
	"storepay/internal/payhere"
	"storepay/internal/repository/payments_repo/memory"
)

const testSecret = "test_merchant_secret"

type recordingOrderSync struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *recordingOrderSync) PaymentSucceeded(_ context.Context, p *domain.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p.OrderID)
	return s.err
}

type recordingNotificationLog struct {
	mu      sync.Mutex
	entries []domain.NotificationLogEntry
	err     error
}

func (l *recordingNotificationLog) Record(_ context.Context, e *domain.NotificationLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	return l.err
}

func (l *recordingNotificationLog) outcomes() []domain.NotificationOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.NotificationOutcome
	for _, e := range l.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type failingPaymentRepo struct{}

func (failingPaymentRepo) UpsertByOrderID(context.Context, *domain.PaymentRecord) (*domain.PaymentRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingPaymentRepo) GetByOrderID(context.Context, string) (*domain.PaymentRecord, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	service   PaymentService
	repo      *memory.PaymentRepository
	orderSync *recordingOrderSync
	log       *recordingNotificationLog
}

func newFixture(secret string) *fixture {
	f := &fixture{
		repo:      memory.NewPaymentRepository(),
		orderSync: &recordingOrderSync{},
		log:       &recordingNotificationLog{},
	}
	f.service = NewPaymentService(payhere.NewEngine(secret), f.repo, f.orderSync, f.log, "LKR", zap.NewNop())
	return f
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func signed(n domain.Notification) *domain.Notification {
	n.Signature = md5Upper(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + md5Upper(testSecret))
	return &n
}

func baseNotification(orderID, statusCode string) domain.Notification {
	return domain.Notification{
		MerchantID:     "test_merchant",
		OrderID:        orderID,
		PaymentID:      "pay_" + orderID,
		Amount:         "100.50",
		Currency:       "LKR",
		StatusCode:     statusCode,
		UserID:         "user123",
		Method:         "VISA",
		CardHolderName: "John Doe",
		CardNo:         "************1234",
	}
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestGenerateCheckoutHash(t *testing.T) {
	f := newFixture("S1")
	hash, err := f.service.GenerateCheckoutHash(context.Background(), CheckoutHashRequest{
		MerchantID: "M1",
		OrderID:    "O1",
		Amount:     amount("100.5"),
		Currency:   "LKR",
	})
	if err != nil {
		t.Fatalf("GenerateCheckoutHash() error = %v", err)
	}
	if want := md5Upper("M1O1100.50LKR" + md5Upper("S1")); hash != want {
		t.Errorf("hash = %s, want %s", hash, want)
	}
	if f.repo.Writes() != 0 {
		t.Errorf("store writes = %d, want 0", f.repo.Writes())
	}
}

func TestGenerateCheckoutHash_DefaultsCurrency(t *testing.T) {
	f := newFixture("S1")
	withDefault, err := f.service.GenerateCheckoutHash(context.Background(), CheckoutHashRequest{
		MerchantID: "M1", OrderID: "O1", Amount: amount("100.5"),
	})
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := f.service.GenerateCheckoutHash(context.Background(), CheckoutHashRequest{
		MerchantID: "M1", OrderID: "O1", Amount: amount("100.50"), Currency: "LKR",
	})
	if err != nil {
		t.Fatal(err)
	}
	if withDefault != explicit {
		t.Errorf("hash without currency = %s, want LKR hash %s", withDefault, explicit)
	}
}

func TestGenerateCheckoutHash_ReportsAllMissingFields(t *testing.T) {
	tests := []struct {
		name string
		req  CheckoutHashRequest
		want []string
	}{
		{"order id and amount", CheckoutHashRequest{MerchantID: "M1", Currency: "LKR"}, []string{"orderId", "amount"}},
		{"everything", CheckoutHashRequest{}, []string{"merchantId", "orderId", "amount"}},
		{"zero amount", CheckoutHashRequest{MerchantID: "M1", OrderID: "O1", Amount: amount("0")}, []string{"amount"}},
		{"merchant only", CheckoutHashRequest{OrderID: "O1", Amount: amount("1")}, []string{"merchantId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFixture("S1").service.GenerateCheckoutHash(context.Background(), tt.req)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if !reflect.DeepEqual(vErr.MissingFields, tt.want) {
				t.Errorf("MissingFields = %v, want %v", vErr.MissingFields, tt.want)
			}
		})
	}
}

func TestGenerateCheckoutHash_ValidationBeforeConfiguration(t *testing.T) {
	_, err := newFixture("").service.GenerateCheckoutHash(context.Background(), CheckoutHashRequest{MerchantID: "M1"})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want *ValidationError", err)
	}
}

func TestGenerateCheckoutHash_MissingSecret(t *testing.T) {
	_, err := newFixture("").service.GenerateCheckoutHash(context.Background(), CheckoutHashRequest{
		MerchantID: "M1", OrderID: "O1", Amount: amount("1"),
	})
	if !errors.Is(err, domain.ErrMissingMerchantSecret) {
		t.Errorf("error = %v, want ErrMissingMerchantSecret", err)
	}
}

func TestHandleNotification_AppliesSuccess(t *testing.T) {
	f := newFixture(testSecret)
	n := signed(baseNotification("order123", "2"))

	if err := f.service.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("HandleNotification() error = %v", err)
	}

	rec, err := f.repo.GetByOrderID(context.Background(), "order123")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.PaymentStatusSuccess {
		t.Errorf("status = %s, want success", rec.Status)
	}
	if !rec.Amount.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("amount = %s, want 100.5", rec.Amount)
	}
	if rec.UserID != "user123" || rec.PaymentMethod != "VISA" || rec.PaymentID != "pay_order123" {
		t.Errorf("record = %+v, want descriptive fields from notification", rec)
	}
	if rec.CardHolderName != "John Doe" || rec.CardNo != "************1234" {
		t.Errorf("card fields = %q/%q", rec.CardHolderName, rec.CardNo)
	}
	if got := f.orderSync.calls; len(got) != 1 || got[0] != "order123" {
		t.Errorf("order sync calls = %v, want [order123]", got)
	}
	if got := f.log.outcomes(); !reflect.DeepEqual(got, []domain.NotificationOutcome{domain.NotificationReceived, domain.NotificationApplied}) {
		t.Errorf("audit outcomes = %v", got)
	}
	for _, e := range f.log.entries {
		if strings.Contains(string(e.Payload), n.Signature) {
			t.Errorf("%s audit payload contains the signature", e.Outcome)
		}
		if !e.ReceivedAt.Equal(f.log.entries[0].ReceivedAt) {
			t.Errorf("%s audit row received at %v, want %v", e.Outcome, e.ReceivedAt, f.log.entries[0].ReceivedAt)
		}
	}
}

func TestHandleNotification_StatusCodes(t *testing.T) {
	tests := []struct {
		code string
		want domain.PaymentStatus
	}{
		{"2", domain.PaymentStatusSuccess},
		{"0", domain.PaymentStatusPending},
		{"-1", domain.PaymentStatusCancelled},
		{"-2", domain.PaymentStatusFailed},
		{"-3", domain.PaymentStatusChargedback},
		{"7", domain.PaymentStatusPending},
	}
	f := newFixture(testSecret)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			orderID := "order_" + tt.code
			if err := f.service.HandleNotification(context.Background(), signed(baseNotification(orderID, tt.code))); err != nil {
				t.Fatal(err)
			}
			rec, err := f.repo.GetByOrderID(context.Background(), orderID)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Status != tt.want {
				t.Errorf("status = %s, want %s", rec.Status, tt.want)
			}
		})
	}
	if got := f.orderSync.calls; len(got) != 1 {
		t.Errorf("order sync calls = %v, want only the success notification", got)
	}
}

func TestHandleNotification_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(testSecret)
	n := signed(baseNotification("order123", "2"))

	if err := f.service.HandleNotification(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	first, _ := f.repo.GetByOrderID(context.Background(), "order123")

	for i := 0; i < 5; i++ {
		if err := f.service.HandleNotification(context.Background(), n); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}
	last, _ := f.repo.GetByOrderID(context.Background(), "order123")

	if !reflect.DeepEqual(first, last) {
		t.Errorf("record after replays = %+v, want %+v", last, first)
	}
	if f.repo.Len() != 1 {
		t.Errorf("records = %d, want 1", f.repo.Len())
	}
}

func TestHandleNotification_LastAcceptedNotificationWins(t *testing.T) {
	f := newFixture(testSecret)
	ctx := context.Background()

	if err := f.service.HandleNotification(ctx, signed(baseNotification("O1", "2"))); err != nil {
		t.Fatal(err)
	}
	later := baseNotification("O1", "-3")
	later.Amount = "90.00"
	later.Currency = "USD"
	if err := f.service.HandleNotification(ctx, signed(later)); err != nil {
		t.Fatal(err)
	}

	rec, _ := f.repo.GetByOrderID(ctx, "O1")
	if rec.Status != domain.PaymentStatusChargedback || rec.Currency != "USD" || !rec.Amount.Equal(decimal.NewFromInt(90)) {
		t.Errorf("record = %+v, want values of the last notification", rec)
	}
}

func TestHandleNotification_RejectsTamperedSignature(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *domain.Notification)
	}{
		{"invalid md5sig", func(n *domain.Notification) { n.Signature = "invalid_hash" }},
		{"missing md5sig", func(n *domain.Notification) { n.Signature = "" }},
		{"lower-case md5sig", func(n *domain.Notification) { n.Signature = strings.ToLower(n.Signature) }},
		{"amount changed", func(n *domain.Notification) { n.Amount = "1000.50" }},
		{"status changed", func(n *domain.Notification) { n.StatusCode = "2" }},
		{"order changed", func(n *domain.Notification) { n.OrderID = "other" }},
		{"non-numeric amount", func(n *domain.Notification) { n.Amount = "abc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testSecret)
			n := signed(baseNotification("order123", "-2"))
			tt.mutate(n)

			err := f.service.HandleNotification(context.Background(), n)
			if !errors.Is(err, domain.ErrSignatureMismatch) {
				t.Fatalf("error = %v, want ErrSignatureMismatch", err)
			}
			if f.repo.Len() != 0 || f.repo.Writes() != 0 {
				t.Errorf("store touched: len=%d writes=%d", f.repo.Len(), f.repo.Writes())
			}
			if got := f.log.outcomes(); !reflect.DeepEqual(got, []domain.NotificationOutcome{domain.NotificationReceived, domain.NotificationRejected}) {
				t.Errorf("audit outcomes = %v", got)
			}
		})
	}
}

func TestHandleNotification_MissingSecretRejects(t *testing.T) {
	f := newFixture("")
	err := f.service.HandleNotification(context.Background(), signed(baseNotification("order123", "2")))
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Errorf("error = %v, want ErrSignatureMismatch", err)
	}
	if f.repo.Len() != 0 {
		t.Error("record created without a configured secret")
	}
}

func TestHandleNotification_StoreFailureIsTransient(t *testing.T) {
	log := &recordingNotificationLog{}
	svc := NewPaymentService(payhere.NewEngine(testSecret), failingPaymentRepo{}, nil, log, "LKR", zap.NewNop())

	err := svc.HandleNotification(context.Background(), signed(baseNotification("order123", "2")))
	var pErr *domain.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if errors.Is(err, domain.ErrSignatureMismatch) {
		t.Error("store failure reported as signature mismatch")
	}
	if got := log.outcomes(); !reflect.DeepEqual(got, []domain.NotificationOutcome{domain.NotificationReceived, domain.NotificationFailed}) {
		t.Errorf("audit outcomes = %v", got)
	}
}

func TestHandleNotification_OrderSyncFailureIsTransientAndRetrySafe(t *testing.T) {
	f := newFixture(testSecret)
	f.orderSync.err = errors.New("outbox unavailable")
	n := signed(baseNotification("order123", "2"))

	var pErr *domain.PersistenceError
	if err := f.service.HandleNotification(context.Background(), n); !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	first, _ := f.repo.GetByOrderID(context.Background(), "order123")

	f.orderSync.err = nil
	if err := f.service.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	second, _ := f.repo.GetByOrderID(context.Background(), "order123")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("retry changed record: %+v -> %+v", first, second)
	}
}

func TestHandleNotification_AuditLogFailureDoesNotAffectOutcome(t *testing.T) {
	f := newFixture(testSecret)
	f.log.err = errors.New("audit table missing")
	if err := f.service.HandleNotification(context.Background(), signed(baseNotification("order123", "0"))); err != nil {
		t.Errorf("HandleNotification() error = %v, want nil", err)
	}
}

func TestHandleNotification_ConcurrentDistinctOrders(t *testing.T) {
	f := newFixture(testSecret)
	codes := []string{"2", "0", "-1", "-2", "-3"}
	want := map[string]domain.PaymentStatus{}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		code := codes[i%len(codes)]
		orderID := fmt.Sprintf("order-%d", i)
		want[orderID] = domain.StatusFromGatewayCode(code)
		n := signed(baseNotification(orderID, code))
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.service.HandleNotification(context.Background(), n)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if f.repo.Len() != len(want) {
		t.Fatalf("records = %d, want %d", f.repo.Len(), len(want))
	}
	for orderID, status := range want {
		rec, err := f.repo.GetByOrderID(context.Background(), orderID)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status != status || rec.PaymentID != "pay_"+orderID {
			t.Errorf("%s = %+v, want status %s", orderID, rec, status)
		}
	}
}

func TestGetPayment(t *testing.T) {
	f := newFixture(testSecret)
	if _, err := f.service.GetPayment(context.Background(), "nope"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Errorf("error = %v, want ErrPaymentNotFound", err)
	}

	svc := NewPaymentService(payhere.NewEngine(testSecret), failingPaymentRepo{}, nil, nil, "LKR", zap.NewNop())
	var pErr *domain.PersistenceError
	if _, err := svc.GetPayment(context.Background(), "x"); !errors.As(err, &pErr) {
		t.Errorf("error = %v, want *PersistenceError", err)
	}
}
