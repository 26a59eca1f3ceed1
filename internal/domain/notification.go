package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Notification is the server-to-server callback posted by PayHere to notify_url.
// PayHere posts it form-encoded; the JSON tags accept the same fields as a JSON body.
type Notification struct {
	MerchantID     string `json:"merchant_id" schema:"merchant_id"`
	OrderID        string `json:"order_id" schema:"order_id"`
	PaymentID      string `json:"payment_id" schema:"payment_id"`
	Amount         string `json:"payhere_amount" schema:"payhere_amount"`
	Currency       string `json:"payhere_currency" schema:"payhere_currency"`
	StatusCode     string `json:"status_code" schema:"status_code"`
	Signature      string `json:"md5sig" schema:"md5sig"`
	UserID         string `json:"custom_1" schema:"custom_1"`
	Custom2        string `json:"custom_2" schema:"custom_2"`
	Method         string `json:"method" schema:"method"`
	StatusMessage  string `json:"status_message" schema:"status_message"`
	CardHolderName string `json:"card_holder_name" schema:"card_holder_name"`
	CardNo         string `json:"card_no" schema:"card_no"`
	CardExpiry     string `json:"card_expiry" schema:"card_expiry"`
}

// UnmarshalJSON accepts every field as a JSON string or number. Numbers keep
// their literal text, so "status_code":2 and "status_code":"2" decode alike.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, dst := range n.fieldsByKey() {
		value, ok := raw[key]
		if !ok {
			continue
		}
		s, err := scalarText(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		*dst = s
	}
	return nil
}

func (n *Notification) fieldsByKey() map[string]*string {
	return map[string]*string{
		"merchant_id":      &n.MerchantID,
		"order_id":         &n.OrderID,
		"payment_id":       &n.PaymentID,
		"payhere_amount":   &n.Amount,
		"payhere_currency": &n.Currency,
		"status_code":      &n.StatusCode,
		"md5sig":           &n.Signature,
		"custom_1":         &n.UserID,
		"custom_2":         &n.Custom2,
		"method":           &n.Method,
		"status_message":   &n.StatusMessage,
		"card_holder_name": &n.CardHolderName,
		"card_no":          &n.CardNo,
		"card_expiry":      &n.CardExpiry,
	}
}

// Scalar is a string that may arrive in JSON as a string or a number.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	text, err := scalarText(data)
	if err != nil {
		return err
	}
	*s = Scalar(text)
	return nil
}

func (s Scalar) String() string {
	return string(s)
}

// scalarText returns a JSON string's value or a JSON number's literal text.
// null is the empty string; objects, arrays and booleans are rejected.
func scalarText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", fmt.Errorf("expected a string or number, got %s", data)
	}
	return num.String(), nil
}

type NotificationOutcome string

const (
	NotificationReceived NotificationOutcome = "received"
	NotificationApplied  NotificationOutcome = "applied"
	NotificationRejected NotificationOutcome = "rejected"
	NotificationFailed   NotificationOutcome = "failed"
)

// NotificationLogEntry is an audit row for one inbound notification.
type NotificationLogEntry struct {
	ID         string
	OrderID    string
	PaymentID  string
	StatusCode string
	Outcome    NotificationOutcome
	Payload    []byte
	ReceivedAt time.Time
}
