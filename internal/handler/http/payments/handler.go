package payments_http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storepay/internal/app/payments"
	"storepay/internal/domain"
	"storepay/internal/payhere"
)

const maxBodyBytes = 64 << 10

type PaymentHandler struct {
	service     payments.PaymentService
	formDecoder *schema.Decoder
	logger      *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &PaymentHandler{service: s, formDecoder: decoder, logger: l}
}

// GetHashRequest fields are hashed exactly as sent; ids may be JSON numbers.
type GetHashRequest struct {
	MerchantID domain.Scalar `json:"merchantId"`
	OrderID    domain.Scalar `json:"orderId"`
	Amount     any           `json:"amount"`
	Currency   domain.Scalar `json:"currency"`
}

type GetHashResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type PaymentResponse struct {
	OrderID        string `json:"orderId"`
	PaymentID      string `json:"paymentId"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	UserID         string `json:"userId"`
	PaymentMethod  string `json:"paymentMethod,omitempty"`
	CardHolderName string `json:"cardHolderName,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type PaymentStatusResponse struct {
	Success bool            `json:"success"`
	Payment PaymentResponse `json:"payment"`
}

func (h *PaymentHandler) GetHashHandler(w http.ResponseWriter, r *http.Request) {
	var req GetHashRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body for get-hash", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.logger.Warn("Invalid amount for get-hash", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	hash, err := h.service.GenerateCheckoutHash(r.Context(), payments.CheckoutHashRequest{
		MerchantID: req.MerchantID.String(),
		OrderID:    req.OrderID.String(),
		Amount:     amount,
		Currency:   req.Currency.String(),
	})
	if err != nil {
		var vErr *domain.ValidationError
		var cErr *domain.ConfigurationError
		switch {
		case errors.As(err, &vErr):
			h.writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.As(err, &cErr):
			h.writeError(w, http.StatusInternalServerError, "Missing merchant secret configuration")
		default:
			h.logger.Error("Failed to generate payment hash", zap.String("order_id", req.OrderID.String()), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "Error generating payment hash")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, GetHashResponse{Success: true, Hash: hash})
}

func (h *PaymentHandler) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.decodeNotification(w, r)
	if err != nil {
		// Malformed callbacks get the same opaque answer as a bad signature.
		h.logger.Warn("Undecodable payment notification", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid hash")
		return
	}

	if err := h.service.HandleNotification(r.Context(), n); err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			h.writeError(w, http.StatusBadRequest, "Invalid hash")
			return
		}
		h.logger.Error("Failed to process payment notification", zap.String("order_id", n.OrderID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Error processing payment notification")
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *PaymentHandler) GetPaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "Order ID is required")
		return
	}

	p, err := h.service.GetPayment(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment not found")
			return
		}
		h.logger.Error("Failed to get payment status", zap.String("order_id", orderID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Error retrieving payment")
		return
	}

	h.writeJSON(w, http.StatusOK, PaymentStatusResponse{
		Success: true,
		Payment: PaymentResponse{
			OrderID:        p.OrderID,
			PaymentID:      p.PaymentID,
			Amount:         payhere.FormatAmount(p.Amount),
			Currency:       p.Currency,
			Status:         string(p.Status),
			UserID:         p.UserID,
			PaymentMethod:  p.PaymentMethod,
			CardHolderName: p.CardHolderName,
			CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

// decodeNotification reads a form-encoded body (what PayHere sends) or a JSON body.
func (h *PaymentHandler) decodeNotification(w http.ResponseWriter, r *http.Request) (*domain.Notification, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var n domain.Notification
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		if err := h.formDecoder.Decode(&n, r.PostForm); err != nil {
			return nil, fmt.Errorf("failed to decode form: %w", err)
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	}
	return &n, nil
}

// parseAmount accepts a JSON number or a numeric string. Absent, null and ""
// come back as an invalid NullDecimal so the service reports amount as missing.
func parseAmount(raw any) (decimal.NullDecimal, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case json.Number:
		s = v.String()
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case string:
		s = strings.TrimSpace(v)
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
	default:
		return decimal.NullDecimal{}, fmt.Errorf("%w: unsupported type %T", domain.ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, s)
	}
	return decimal.NewNullDecimal(d), nil
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
