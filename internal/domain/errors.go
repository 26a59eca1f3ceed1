package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSignatureMismatch = errors.New("notification signature mismatch")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// ErrMissingMerchantSecret is returned before any hashing is attempted when no
// shared secret was configured.
var ErrMissingMerchantSecret = &ConfigurationError{Setting: "PAYHERE_MERCHANT_SECRET"}

// ValidationError lists every required field absent from a caller's payload.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: " + strings.Join(e.MissingFields, ", ")
}

type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Setting)
}

// PersistenceError wraps a store failure during reconciliation. Callers treat it
// as transient.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
