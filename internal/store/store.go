// Package store is the persistence layer for bookings, tickets and payment
// attempts. Records live in PocketBase collections; status mutations go
// through conditional UPDATEs so racing writers resolve at the database row
// instead of in process memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-booking/internal/status"
	"ticket-booking/models"
)

const (
	collBookings    = "bookings"
	collTickets     = "tickets"
	collAttempts    = "payment_attempts"
	collEvents      = "events"
	collTicketTypes = "ticket_types"
)

type Store struct {
	app core.App
}

func NewStore(app core.App) *Store {
	return &Store{app: app}
}

// CreateBookingWithTickets persists the booking and one ticket per unit in
// a single transaction. Reserve is fail-closed: if this returns an error
// the caller releases every inventory hold before surfacing anything.
func (s *Store) CreateBookingWithTickets(ctx context.Context, b *models.Booking) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		bookings, err := txApp.FindCollectionByNameOrId(collBookings)
		if err != nil {
			return err
		}
		rec := core.NewRecord(bookings)
		rec.Set("user", b.UserID)
		rec.Set("event", b.EventID)
		rec.Set("line_items", b.LineItems)
		rec.Set("total_amount", b.TotalAmount.InexactFloat64())
		rec.Set("status", string(b.Status))
		rec.Set("expires_at", b.ExpiresAt.UTC())
		if err := txApp.SaveWithContext(ctx, rec); err != nil {
			return err
		}
		b.ID = rec.Id
		b.CreatedAt = rec.GetDateTime("created").Time()

		tickets, err := txApp.FindCollectionByNameOrId(collTickets)
		if err != nil {
			return err
		}
		b.Tickets = b.Tickets[:0]
		for _, li := range b.LineItems {
			for i := 0; i < li.Quantity; i++ {
				t := core.NewRecord(tickets)
				t.Set("booking", b.ID)
				t.Set("event", b.EventID)
				t.Set("ticket_type", li.TicketTypeID)
				if i < len(li.Seats) {
					t.Set("seat_section", li.Seats[i].Section)
					t.Set("seat_row", li.Seats[i].Row)
					t.Set("seat_number", li.Seats[i].Number)
				}
				t.Set("status", string(models.TicketReserved))
				if err := txApp.SaveWithContext(ctx, t); err != nil {
					return err
				}
				b.Tickets = append(b.Tickets, ticketFromRecord(t))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: create booking: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	rec, err := s.app.FindRecordById(collBookings, id)
	if err != nil {
		return nil, fmt.Errorf("store: booking %s: %w", id, err)
	}
	return bookingFromRecord(rec)
}

// GetBookingDetail loads a booking together with its tickets and payment
// attempts for the read-only lookup API.
func (s *Store) GetBookingDetail(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	ticketRecs, err := s.app.FindRecordsByFilter(
		collTickets,
		"booking = {:bookingId}",
		"created",
		0,
		0,
		dbx.Params{"bookingId": id},
	)
	if err != nil {
		return nil, fmt.Errorf("store: tickets of %s: %w", id, err)
	}
	for _, r := range ticketRecs {
		b.Tickets = append(b.Tickets, ticketFromRecord(r))
	}

	attemptRecs, err := s.app.FindRecordsByFilter(
		collAttempts,
		"booking = {:bookingId}",
		"created",
		0,
		0,
		dbx.Params{"bookingId": id},
	)
	if err != nil {
		return nil, fmt.Errorf("store: attempts of %s: %w", id, err)
	}
	for _, r := range attemptRecs {
		b.Attempts = append(b.Attempts, attemptFromRecord(r))
	}
	return b, nil
}

func (s *Store) ListUserBookings(ctx context.Context, userID string, limit int) ([]*models.Booking, error) {
	recs, err := s.app.FindRecordsByFilter(
		collBookings,
		"user = {:userId}",
		"-created",
		limit,
		0,
		dbx.Params{"userId": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: bookings of user %s: %w", userID, err)
	}
	out := make([]*models.Booking, 0, len(recs))
	for _, r := range recs {
		b, err := bookingFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// TransitionBooking performs the compare-and-swap at the heart of the
// booking state machine: the UPDATE only applies while the stored status is
// one of the expected predecessors, so a confirm and an expire racing on
// the same booking cannot both win. The loser gets ErrStaleStatus.
func (s *Store) TransitionBooking(ctx context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) error {
	if len(from) == 0 {
		return errors.New("store: transition requires at least one expected status")
	}
	params := dbx.Params{
		"id":  id,
		"to":  string(to),
		"now": types.NowDateTime().String(),
	}
	placeholders := make([]string, 0, len(from))
	for i, f := range from {
		if !f.CanTransition(to) {
			return fmt.Errorf("store: illegal transition %s -> %s", f, to)
		}
		key := fmt.Sprintf("from%d", i)
		placeholders = append(placeholders, "{:"+key+"}")
		params[key] = string(f)
	}

	res, err := s.app.DB().NewQuery(
		"UPDATE bookings SET status = {:to}, updated = {:now} WHERE id = {:id} AND status IN (" +
			strings.Join(placeholders, ",") + ")",
	).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: transition booking: %v", status.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return status.ErrStaleStatus
	}
	return nil
}

// FindExpired returns bookings still pending or awaiting payment whose
// reservation window has passed. Used exclusively by the sweeper.
func (s *Store) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error) {
	var rows []dbx.NullStringMap
	dt, err := types.ParseDateTime(cutoff.UTC())
	if err != nil {
		return nil, err
	}
	err = s.app.DB().NewQuery(
		`SELECT id FROM bookings
		 WHERE status IN ({:pending}, {:awaiting}) AND expires_at <= {:cutoff}
		 ORDER BY expires_at ASC
		 LIMIT {:limit}`,
	).Bind(dbx.Params{
		"pending":  string(models.BookingPending),
		"awaiting": string(models.BookingAwaitingPayment),
		"cutoff":   dt.String(),
		"limit":    limit,
	}).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: find expired: %v", status.ErrStoreUnavailable, err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row["id"].String)
	}
	return hydrateExpired(ctx, ids, s.GetBooking), nil
}

// hydrateExpired loads each expired candidate. One unreadable row must
// not block the rest of the batch; it is logged, skipped and picked up
// again next pass.
func hydrateExpired(ctx context.Context, ids []string, get func(context.Context, string) (*models.Booking, error)) []*models.Booking {
	out := make([]*models.Booking, 0, len(ids))
	for _, id := range ids {
		b, err := get(ctx, id)
		if err != nil {
			slog.Error("store: hydrate expired booking", "booking", id, "error", err)
			continue
		}
		out = append(out, b)
	}
	return out
}

// SetTicketsStatus mirrors the booking's terminal decision onto its
// tickets. Tickets are never deleted; expired and cancelled ones stay for
// audit.
func (s *Store) SetTicketsStatus(ctx context.Context, bookingID string, st models.TicketStatus) error {
	_, err := s.app.DB().NewQuery(
		"UPDATE tickets SET status = {:status}, updated = {:now} WHERE booking = {:bookingId}",
	).Bind(dbx.Params{
		"status":    string(st),
		"now":       types.NowDateTime().String(),
		"bookingId": bookingID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: set tickets status: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := s.app.FindRecordById(collEvents, id)
	if err != nil {
		return nil, fmt.Errorf("store: event %s: %w", id, err)
	}
	return &models.Event{
		ID:          rec.Id,
		OrganizerID: rec.GetString("organizer"),
		Title:       rec.GetString("title"),
		Venue:       rec.GetString("venue"),
		StartsAt:    rec.GetDateTime("starts_at").Time(),
		EndsAt:      rec.GetDateTime("ends_at").Time(),
		SalesStart:  rec.GetDateTime("sales_start").Time(),
		SalesEnd:    rec.GetDateTime("sales_end").Time(),
		Status:      models.EventStatus(rec.GetString("status")),
	}, nil
}

func (s *Store) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	rec, err := s.app.FindRecordById(collTicketTypes, id)
	if err != nil {
		return nil, fmt.Errorf("store: ticket type %s: %w", id, err)
	}
	return ticketTypeFromRecord(rec), nil
}

func (s *Store) ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error) {
	recs, err := s.app.FindRecordsByFilter(
		collTicketTypes,
		"event = {:eventId}",
		"created",
		0,
		0,
		dbx.Params{"eventId": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: ticket types of %s: %w", eventID, err)
	}
	out := make([]*models.TicketType, 0, len(recs))
	for _, r := range recs {
		out = append(out, ticketTypeFromRecord(r))
	}
	return out, nil
}
