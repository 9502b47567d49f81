package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_CanTransition(t *testing.T) {
	allowed := []struct {
		from, to BookingStatus
	}{
		{BookingPending, BookingAwaitingPayment},
		{BookingPending, BookingExpired},
		{BookingPending, BookingCancelled},
		{BookingAwaitingPayment, BookingConfirmed},
		{BookingAwaitingPayment, BookingExpired},
		{BookingAwaitingPayment, BookingCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to BookingStatus
	}{
		{BookingPending, BookingConfirmed},
		{BookingConfirmed, BookingExpired},
		{BookingConfirmed, BookingCancelled},
		{BookingExpired, BookingConfirmed},
		{BookingExpired, BookingAwaitingPayment},
		{BookingCancelled, BookingConfirmed},
		{BookingAwaitingPayment, BookingPending},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingAwaitingPayment.Terminal())
	assert.True(t, BookingConfirmed.Terminal())
	assert.True(t, BookingExpired.Terminal())
	assert.True(t, BookingCancelled.Terminal())
}

func TestBooking_TotalUnits(t *testing.T) {
	b := &Booking{
		LineItems: []LineItem{
			{TicketTypeID: "vip", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
			{TicketTypeID: "standard", Quantity: 3, UnitPrice: decimal.NewFromInt(200)},
		},
	}
	assert.Equal(t, 5, b.TotalUnits())

	empty := &Booking{}
	assert.Equal(t, 0, empty.TotalUnits())
}

func TestValidMethod(t *testing.T) {
	assert.True(t, ValidMethod(MethodVietQR))
	assert.True(t, ValidMethod(MethodPayOS))
	assert.True(t, ValidMethod(MethodPOS))
	assert.False(t, ValidMethod(PaymentMethod("paypal")))
	assert.False(t, ValidMethod(PaymentMethod("")))
}
