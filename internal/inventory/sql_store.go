package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-booking/internal/status"
)

// SQLCounterStore keeps the counters in the ticket_types collection rows.
// SQLite serializes writers, so the conditional UPDATE below is the
// linearization point for concurrent reservations of one ticket type.
type SQLCounterStore struct {
	app core.App
}

func NewSQLCounterStore(app core.App) *SQLCounterStore {
	return &SQLCounterStore{app: app}
}

func (s *SQLCounterStore) Decrement(ctx context.Context, ticketTypeID string, qty int) (bool, error) {
	res, err := s.app.DB().NewQuery(
		"UPDATE ticket_types SET available = available - {:qty} WHERE id = {:id} AND available >= {:qty}",
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLCounterStore) Increment(ctx context.Context, ticketTypeID string, qty int) error {
	// MIN keeps available from climbing past total when a restore races
	// with a capacity adjustment.
	_, err := s.app.DB().NewQuery(
		"UPDATE ticket_types SET available = MIN(total, available + {:qty}) WHERE id = {:id}",
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLCounterStore) AdjustCapacity(ctx context.Context, ticketTypeID string, delta int) (bool, error) {
	res, err := s.app.DB().NewQuery(
		`UPDATE ticket_types
		 SET total = total + {:d}, available = available + {:d}
		 WHERE id = {:id} AND total + {:d} >= 0 AND available + {:d} >= 0`,
	).Bind(dbx.Params{"d": delta, "id": ticketTypeID}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLCounterStore) Available(ctx context.Context, ticketTypeID string) (int, error) {
	var available int
	err := s.app.DB().NewQuery(
		"SELECT available FROM ticket_types WHERE id = {:id}",
	).Bind(dbx.Params{"id": ticketTypeID}).WithContext(ctx).Row(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("inventory: unknown ticket type %s", ticketTypeID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return available, nil
}
