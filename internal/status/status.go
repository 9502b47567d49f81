// Package status holds the engine's sentinel errors and the wire types
// shared between gateway clients and the payment orchestrator.
package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientInventory is returned when a ticket type cannot
	// cover the requested quantity. User-facing, not retryable.
	ErrInsufficientInventory = errors.New("inventory: insufficient inventory")

	// ErrEventNotBookable is returned for events outside their sales
	// window or not yet published.
	ErrEventNotBookable = errors.New("booking: event not bookable")

	// ErrAlreadyFinalized signals that a booking already reached a
	// terminal state. Callers racing on Finalize treat it as a
	// success-no-op, never as a failure.
	ErrAlreadyFinalized = errors.New("booking: already finalized")

	// ErrStaleStatus is returned by conditional status updates whose
	// guard no longer matches the stored row.
	ErrStaleStatus = errors.New("store: stale status")

	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrNoPaymentOptions   = errors.New("payment: no payment options available")
	ErrRefNotFound        = errors.New("payment: reference not found")
	ErrStoreUnavailable   = errors.New("store: unavailable")
)

// Transaction is a settled bank transfer as reported by a bank
// notification channel or webhook.
type Transaction struct {
	RefID         string          `json:"ref_id"`
	BookingID     string          `json:"booking_id"`
	Ccy           string          `json:"ccy"`
	Payer         string          `json:"payer"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}
