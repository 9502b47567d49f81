// Package notify pushes booking status changes to interested parties.
// Delivery is best effort: a notification failure never fails the booking
// operation that triggered it.
package notify

import (
	"context"

	"ticket-booking/models"
)

// FanOut broadcasts a change to every configured sink.
type FanOut struct {
	sinks []Sink
}

type Sink interface {
	BookingStatusChanged(ctx context.Context, booking *models.Booking)
}

func NewFanOut(sinks ...Sink) *FanOut {
	return &FanOut{sinks: sinks}
}

func (f *FanOut) BookingStatusChanged(ctx context.Context, booking *models.Booking) {
	for _, sink := range f.sinks {
		sink.BookingStatusChanged(ctx, booking)
	}
}
