package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingAwaitingPayment BookingStatus = "awaiting_payment"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingExpired         BookingStatus = "expired"
	BookingCancelled       BookingStatus = "cancelled"
)

// bookingTransitions is the closed transition table for the booking state
// machine. Any transition not listed here is rejected by the store.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:         {BookingAwaitingPayment, BookingExpired, BookingCancelled},
	BookingAwaitingPayment: {BookingConfirmed, BookingExpired, BookingCancelled},
}

// CanTransition reports whether moving from -> to is a legal booking
// transition. Terminal states have no outgoing edges.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// LineItem is one (ticket type, quantity) entry of a reservation request.
// Seats are opaque to the engine; they are carried through to the created
// tickets untouched.
type LineItem struct {
	TicketTypeID string          `json:"ticket_type"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Seats        []Seat          `json:"seats,omitempty"`
}

type Booking struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	EventID     string          `json:"event_id"`
	LineItems   []LineItem      `json:"line_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      BookingStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`

	Tickets  []Ticket         `json:"tickets,omitempty"`
	Attempts []PaymentAttempt `json:"payment_attempts,omitempty"`
}

// TotalUnits is the number of tickets the booking holds across line items.
func (b *Booking) TotalUnits() int {
	n := 0
	for _, li := range b.LineItems {
		n += li.Quantity
	}
	return n
}
