package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ticket-booking/internal/inventory"
	"ticket-booking/internal/status"
	"ticket-booking/models"
	"ticket-booking/monitoring"
)

// FinalizeOutcome selects the terminal decision applied to a booking.
type FinalizeOutcome struct {
	target    models.BookingStatus
	attemptID string
}

// Confirm finalizes the booking as paid through the given attempt.
func Confirm(attemptID string) FinalizeOutcome {
	return FinalizeOutcome{target: models.BookingConfirmed, attemptID: attemptID}
}

// Expire finalizes the booking as timed out, restoring inventory.
func Expire() FinalizeOutcome { return FinalizeOutcome{target: models.BookingExpired} }

// Cancel finalizes the booking as user-cancelled, restoring inventory.
func Cancel() FinalizeOutcome { return FinalizeOutcome{target: models.BookingCancelled} }

type ReservationService struct {
	store    ReservationStore
	ledger   Ledger
	notifier Notifier
	window   time.Duration
}

func NewReservationService(store ReservationStore, ledger Ledger, notifier Notifier, window time.Duration) *ReservationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReservationService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		window:   window,
	}
}

// Reserve validates the request against the event's sales window, takes
// inventory for every line item all-or-nothing, and persists the booking
// with its tickets. Prices come from the stored ticket types, never from
// the caller. Fail-closed: any error on the way releases every hold
// already taken so no inventory can leak without a durable record.
func (s *ReservationService) Reserve(ctx context.Context, userID, eventID string, items []models.LineItem) (*models.Booking, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("reservation: empty line items")
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, status.ErrEventNotBookable
	}
	now := time.Now()
	if !event.Bookable(now) {
		return nil, status.ErrEventNotBookable
	}

	holds := make([]*inventory.Hold, 0, len(items))
	releaseAll := func() {
		for _, h := range holds {
			if err := s.ledger.Release(ctx, h); err != nil {
				slog.Error("reservation: release hold", "ticketType", h.TicketTypeID, "error", err)
			}
		}
	}

	total := decimal.Zero
	for i := range items {
		li := &items[i]
		if li.Quantity <= 0 {
			releaseAll()
			return nil, fmt.Errorf("reservation: invalid quantity %d for %s", li.Quantity, li.TicketTypeID)
		}

		tt, err := s.store.GetTicketType(ctx, li.TicketTypeID)
		if err != nil || tt.EventID != eventID {
			releaseAll()
			return nil, status.ErrEventNotBookable
		}
		li.UnitPrice = tt.Price

		h, err := s.ledger.TryReserve(ctx, li.TicketTypeID, li.Quantity)
		if err != nil {
			releaseAll()
			monitoring.TrackReservation(eventID, "rejected")
			return nil, err
		}
		holds = append(holds, h)
		total = total.Add(tt.Price.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}

	booking := &models.Booking{
		UserID:      userID,
		EventID:     eventID,
		LineItems:   items,
		TotalAmount: total,
		Status:      models.BookingPending,
		ExpiresAt:   now.Add(s.window),
	}
	if err := s.store.CreateBookingWithTickets(ctx, booking); err != nil {
		releaseAll()
		monitoring.TrackReservation(eventID, "store_error")
		return nil, err
	}

	// The booking row is now the durable record of the held units;
	// restoration on expiry goes through Restore keyed by line items, so
	// the in-memory holds are done.
	for _, h := range holds {
		s.ledger.Commit(ctx, h)
	}

	if err := s.store.TransitionBooking(ctx, booking.ID, models.BookingAwaitingPayment, models.BookingPending); err != nil {
		// Leave the booking pending; the sweeper will expire it and
		// restore the units if nothing else happens.
		slog.Error("reservation: transition to awaiting_payment", "booking", booking.ID, "error", err)
		return nil, err
	}
	booking.Status = models.BookingAwaitingPayment

	monitoring.TrackReservation(eventID, "success")
	s.notifier.BookingStatusChanged(ctx, booking)
	return booking, nil
}

// Finalize applies a terminal decision to the booking. The status
// compare-and-swap in the store is the only synchronization: whichever of
// confirm, expire or cancel wins it applies its effects exactly once, the
// losers observe ErrAlreadyFinalized and must treat it as a success-no-op.
func (s *ReservationService) Finalize(ctx context.Context, bookingID string, outcome FinalizeOutcome) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	from := []models.BookingStatus{models.BookingAwaitingPayment}
	if outcome.target != models.BookingConfirmed {
		// A crash between insert and the awaiting_payment transition must
		// not strand inventory, so expiry/cancel also collect pending rows.
		from = append(from, models.BookingPending)
	}

	if err := s.store.TransitionBooking(ctx, bookingID, outcome.target, from...); err != nil {
		if errors.Is(err, status.ErrStaleStatus) {
			current, rerr := s.store.GetBooking(ctx, bookingID)
			if rerr == nil && current.Status.Terminal() {
				return status.ErrAlreadyFinalized
			}
		}
		return err
	}
	booking.Status = outcome.target

	switch outcome.target {
	case models.BookingConfirmed:
		s.applyConfirm(ctx, booking, outcome.attemptID)
	case models.BookingExpired:
		s.applyRelease(ctx, booking, models.TicketExpired)
	case models.BookingCancelled:
		s.applyRelease(ctx, booking, models.TicketCancelled)
	}

	monitoring.TrackFinalize(string(outcome.target))
	s.notifier.BookingStatusChanged(ctx, booking)
	return nil
}

func (s *ReservationService) applyConfirm(ctx context.Context, booking *models.Booking, attemptID string) {
	// Inventory was decremented at reserve time; confirming sells the held
	// units as-is, no counter change.
	if err := s.store.MarkAttempt(ctx, attemptID, models.AttemptConfirmed, models.AttemptCreated); err != nil &&
		!errors.Is(err, status.ErrStaleStatus) {
		slog.Error("reservation: mark winning attempt", "booking", booking.ID, "attempt", attemptID, "error", err)
	}
	if err := s.store.SupersedeSiblings(ctx, booking.ID, attemptID); err != nil {
		slog.Error("reservation: supersede siblings", "booking", booking.ID, "error", err)
	}
	if err := s.store.SetTicketsStatus(ctx, booking.ID, models.TicketConfirmed); err != nil {
		slog.Error("reservation: confirm tickets", "booking", booking.ID, "error", err)
	}
}

func (s *ReservationService) applyRelease(ctx context.Context, booking *models.Booking, ticketStatus models.TicketStatus) {
	for _, li := range booking.LineItems {
		if err := s.ledger.Restore(ctx, li.TicketTypeID, li.Quantity); err != nil {
			// The booking already moved to its terminal state, so this
			// cannot double-apply; log for the repair path and move on.
			slog.Error("reservation: restore inventory", "booking", booking.ID, "ticketType", li.TicketTypeID, "error", err)
		}
	}
	if err := s.store.FailOpenAttempts(ctx, booking.ID); err != nil {
		slog.Error("reservation: fail open attempts", "booking", booking.ID, "error", err)
	}
	if err := s.store.SetTicketsStatus(ctx, booking.ID, ticketStatus); err != nil {
		slog.Error("reservation: mirror ticket status", "booking", booking.ID, "error", err)
	}
}

// GetBooking is the read-only lookup used by the booking detail endpoint.
func (s *ReservationService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.store.GetBookingDetail(ctx, bookingID)
}

// History lists a user's bookings, newest first.
func (s *ReservationService) History(ctx context.Context, userID string, limit int) ([]*models.Booking, error) {
	return s.store.ListUserBookings(ctx, userID, limit)
}
