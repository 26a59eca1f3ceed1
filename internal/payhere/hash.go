// Package payhere implements the PayHere checkout hash and notification
// signature (md5sig) scheme.
//
// Both directions hash the same ordered tuple:
//
//	upper(md5(merchant_id + order_id + amount(2dp) + currency [+ status_code] + upper(md5(secret))))
//
// and must stay bit-exact with the gateway, so the string is built in one place.
package payhere

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"storepay/internal/domain"
)

// Fields is the part of a checkout or notification bound by the hash.
type Fields struct {
	MerchantID string
	OrderID    string
	Amount     decimal.Decimal
	Currency   string
}

type Engine struct {
	secret string
}

// NewEngine returns an engine bound to the merchant secret. An empty secret is
// accepted here; every hashing call then fails with domain.ErrMissingMerchantSecret.
func NewEngine(merchantSecret string) *Engine {
	return &Engine{secret: merchantSecret}
}

func (e *Engine) Configured() bool {
	return e.secret != ""
}

// FormatAmount renders an amount with exactly two decimals, rounding half away
// from zero. It is the only amount formatting used for hashing.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// CheckoutHash returns the hash the storefront hands to the gateway with a checkout.
func (e *Engine) CheckoutHash(f Fields) (string, error) {
	digest, err := e.secretDigest()
	if err != nil {
		return "", err
	}
	return upperMD5(signable(f, "", digest)), nil
}

// NotificationHash returns the md5sig the gateway is expected to send for f and statusCode.
func (e *Engine) NotificationHash(f Fields, statusCode string) (string, error) {
	digest, err := e.secretDigest()
	if err != nil {
		return "", err
	}
	return upperMD5(signable(f, statusCode, digest)), nil
}

// Verify recomputes the notification hash and compares it with signature.
// The comparison is exact and case-sensitive; an empty signature never matches.
func (e *Engine) Verify(f Fields, statusCode, signature string) (bool, error) {
	expected, err := e.NotificationHash(f, statusCode)
	if err != nil {
		return false, err
	}
	if signature == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1, nil
}

func (e *Engine) secretDigest() (string, error) {
	if e.secret == "" {
		return "", domain.ErrMissingMerchantSecret
	}
	return upperMD5(e.secret), nil
}

func signable(f Fields, statusCode, secretDigest string) string {
	var b strings.Builder
	b.WriteString(f.MerchantID)
	b.WriteString(f.OrderID)
	b.WriteString(FormatAmount(f.Amount))
	b.WriteString(f.Currency)
	b.WriteString(statusCode)
	b.WriteString(secretDigest)
	return b.String()
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
