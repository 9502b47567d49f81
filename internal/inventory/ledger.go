// Package inventory implements the per-ticket-type inventory ledger. The
// ledger is the single source of truth for whether a purchase may proceed;
// counters live in the ticket_types row and every mutation goes through a
// row-scoped conditional update, never a process-wide lock.
package inventory

import (
	"context"
	"fmt"
	"sync/atomic"

	"ticket-booking/internal/status"
)

// CounterStore is the durable backend for ticket type counters. The SQL
// implementation guards each mutation with a single conditional UPDATE so
// concurrent callers for the same ticket type serialize at the row.
type CounterStore interface {
	// Decrement subtracts qty from available if at least qty units
	// remain. It reports false when the guard fails.
	Decrement(ctx context.Context, ticketTypeID string, qty int) (bool, error)

	// Increment restores qty units, clamped so available never exceeds
	// total.
	Increment(ctx context.Context, ticketTypeID string, qty int) error

	// AdjustCapacity moves total and available together by delta.
	AdjustCapacity(ctx context.Context, ticketTypeID string, delta int) (bool, error)

	// Available reads the current available count.
	Available(ctx context.Context, ticketTypeID string) (int, error)
}

// Hold records units decremented from a ticket type but not yet committed
// or released. Its state machine is a single atomic so duplicate Commit or
// Release calls collapse to no-ops.
type Hold struct {
	TicketTypeID string
	Quantity     int

	state int32
}

const (
	holdHeld int32 = iota
	holdCommitted
	holdReleased
)

// Released reports whether the hold's units went back to the pool.
func (h *Hold) Released() bool { return atomic.LoadInt32(&h.state) == holdReleased }

// Committed reports whether the hold's units were permanently sold.
func (h *Hold) Committed() bool { return atomic.LoadInt32(&h.state) == holdCommitted }

type Ledger struct {
	counters CounterStore
}

func NewLedger(counters CounterStore) *Ledger {
	return &Ledger{counters: counters}
}

// TryReserve atomically checks availability and decrements the counter,
// returning a hold for the amount taken. Two simultaneous requests for the
// last unit cannot both succeed: the second one loses the row guard and
// gets ErrInsufficientInventory.
func (l *Ledger) TryReserve(ctx context.Context, ticketTypeID string, qty int) (*Hold, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("inventory: invalid quantity %d", qty)
	}

	ok, err := l.counters.Decrement(ctx, ticketTypeID, qty)
	if err != nil {
		return nil, fmt.Errorf("inventory: decrement %s: %w", ticketTypeID, err)
	}
	if !ok {
		return nil, status.ErrInsufficientInventory
	}

	return &Hold{TicketTypeID: ticketTypeID, Quantity: qty, state: holdHeld}, nil
}

// Commit marks the held units as permanently sold. The counter was already
// decremented at reserve time, so this is a pure state flip. Committing an
// already committed or released hold is a no-op.
func (l *Ledger) Commit(_ context.Context, h *Hold) {
	atomic.CompareAndSwapInt32(&h.state, holdHeld, holdCommitted)
}

// Release restores the held units. Idempotent: releasing an already
// released or committed hold does nothing, which tolerates duplicate
// sweeper and webhook delivery.
func (l *Ledger) Release(ctx context.Context, h *Hold) error {
	if !atomic.CompareAndSwapInt32(&h.state, holdHeld, holdReleased) {
		return nil
	}
	if err := l.counters.Increment(ctx, h.TicketTypeID, h.Quantity); err != nil {
		// Put the hold back so a retry can restore the units.
		atomic.StoreInt32(&h.state, holdHeld)
		return fmt.Errorf("inventory: release %s: %w", h.TicketTypeID, err)
	}
	return nil
}

// Restore puts qty units back without a hold. Used when finalizing a
// booking whose holds did not survive a process restart; the caller's
// status compare-and-swap guarantees it runs at most once per booking.
func (l *Ledger) Restore(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := l.counters.Increment(ctx, ticketTypeID, qty); err != nil {
		return fmt.Errorf("inventory: restore %s: %w", ticketTypeID, err)
	}
	return nil
}

// AdjustCapacity changes a published ticket type's capacity. Shrinking
// below the currently sold or held amount is rejected by the store guard.
func (l *Ledger) AdjustCapacity(ctx context.Context, ticketTypeID string, delta int) error {
	ok, err := l.counters.AdjustCapacity(ctx, ticketTypeID, delta)
	if err != nil {
		return fmt.Errorf("inventory: adjust capacity %s: %w", ticketTypeID, err)
	}
	if !ok {
		return status.ErrInsufficientInventory
	}
	return nil
}

// Available reads the current free count for a ticket type.
func (l *Ledger) Available(ctx context.Context, ticketTypeID string) (int, error) {
	return l.counters.Available(ctx, ticketTypeID)
}
