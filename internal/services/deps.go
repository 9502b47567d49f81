// Package services contains the reservation engine: the booking state
// machine and the payment orchestration around it. Collaborators are
// consumed through narrow interfaces so the store and ledger stay
// swappable in tests.
package services

import (
	"context"

	"ticket-booking/internal/inventory"
	"ticket-booking/models"
)

// ReservationStore is the slice of the persistence layer the reservation
// service depends on.
type ReservationStore interface {
	CreateBookingWithTickets(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingDetail(ctx context.Context, id string) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID string, limit int) ([]*models.Booking, error)
	TransitionBooking(ctx context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) error
	SetTicketsStatus(ctx context.Context, bookingID string, st models.TicketStatus) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	MarkAttempt(ctx context.Context, id string, to models.AttemptStatus, from ...models.AttemptStatus) error
	SupersedeSiblings(ctx context.Context, bookingID, winnerID string) error
	FailOpenAttempts(ctx context.Context, bookingID string) error
}

// AttemptStore is the slice the payment orchestrator needs.
type AttemptStore interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CreateAttempt(ctx context.Context, a *models.PaymentAttempt, payload any) error
	GetAttempt(ctx context.Context, id string) (*models.PaymentAttempt, error)
	FindAttemptByReference(ctx context.Context, method models.PaymentMethod, reference string) (*models.PaymentAttempt, error)
	MarkAttempt(ctx context.Context, id string, to models.AttemptStatus, from ...models.AttemptStatus) error
}

// Ledger abstracts the inventory counters.
type Ledger interface {
	TryReserve(ctx context.Context, ticketTypeID string, qty int) (*inventory.Hold, error)
	Commit(ctx context.Context, h *inventory.Hold)
	Release(ctx context.Context, h *inventory.Hold) error
	Restore(ctx context.Context, ticketTypeID string, qty int) error
}

// Notifier receives booking status changes. Best effort: implementations
// must never block or fail the booking flow.
type Notifier interface {
	BookingStatusChanged(ctx context.Context, b *models.Booking)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) BookingStatusChanged(context.Context, *models.Booking) {}
