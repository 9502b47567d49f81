// Package gateway defines the boundary between the payment orchestrator and
// the external payment providers. Each provider is a black box returning a
// reference and an eventual outcome; failures are always method-local.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-booking/models"
)

// Invoice is the payable summary of a booking handed to a provider.
type Invoice struct {
	BookingID   string
	Amount      decimal.Decimal
	Description string
}

// Provider creates payment references for one method. Implementations must
// bound their own network calls; a timed-out call is that method's failure,
// never the booking's.
type Provider interface {
	Method() models.PaymentMethod
	CreateReference(ctx context.Context, inv Invoice) (*models.PaymentOption, error)
}
