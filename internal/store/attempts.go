package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-booking/internal/status"
	"ticket-booking/models"
)

// CreateAttempt persists one payment attempt row. The (method, reference)
// pair is unique; a duplicate reference from a gateway is a hard error.
func (s *Store) CreateAttempt(ctx context.Context, a *models.PaymentAttempt, payload any) error {
	coll, err := s.app.FindCollectionByNameOrId(collAttempts)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	rec := core.NewRecord(coll)
	rec.Set("booking", a.BookingID)
	rec.Set("method", string(a.Method))
	rec.Set("reference", a.Reference)
	rec.Set("status", string(a.Status))
	if payload != nil {
		rec.Set("payload", payload)
	}
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("%w: create attempt: %v", status.ErrStoreUnavailable, err)
	}
	a.ID = rec.Id
	a.CreatedAt = rec.GetDateTime("created").Time()
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	rec, err := s.app.FindRecordById(collAttempts, id)
	if err != nil {
		return nil, fmt.Errorf("store: attempt %s: %w", id, err)
	}
	a := attemptFromRecord(rec)
	return &a, nil
}

// FindAttemptByReference resolves a gateway callback to its attempt row.
func (s *Store) FindAttemptByReference(ctx context.Context, method models.PaymentMethod, reference string) (*models.PaymentAttempt, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		collAttempts,
		"method = {:method} && reference = {:reference}",
		dbx.Params{"method": string(method), "reference": reference},
	)
	if err != nil {
		return nil, status.ErrRefNotFound
	}
	a := attemptFromRecord(rec)
	return &a, nil
}

// MarkAttempt flips an attempt's status, guarded by the expected current
// statuses. Zero affected rows means another writer got there first.
func (s *Store) MarkAttempt(ctx context.Context, id string, to models.AttemptStatus, from ...models.AttemptStatus) error {
	if len(from) == 0 {
		return errors.New("store: mark attempt requires at least one expected status")
	}
	params := dbx.Params{
		"id":  id,
		"to":  string(to),
		"now": types.NowDateTime().String(),
	}
	placeholders := make([]string, 0, len(from))
	for i, f := range from {
		key := fmt.Sprintf("from%d", i)
		placeholders = append(placeholders, "{:"+key+"}")
		params[key] = string(f)
	}
	res, err := s.app.DB().NewQuery(
		"UPDATE payment_attempts SET status = {:to}, updated = {:now} WHERE id = {:id} AND status IN (" +
			strings.Join(placeholders, ",") + ")",
	).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: mark attempt: %v", status.ErrStoreUnavailable, err)
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

// SupersedeSiblings marks every still-open attempt of the booking except
// the winner as superseded.
func (s *Store) SupersedeSiblings(ctx context.Context, bookingID, winnerID string) error {
	_, err := s.app.DB().NewQuery(
		`UPDATE payment_attempts SET status = {:to}, updated = {:now}
		 WHERE booking = {:bookingId} AND id != {:winnerId} AND status = {:open}`,
	).Bind(dbx.Params{
		"to":        string(models.AttemptSuperseded),
		"now":       types.NowDateTime().String(),
		"bookingId": bookingID,
		"winnerId":  winnerID,
		"open":      string(models.AttemptCreated),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: supersede siblings: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

// FailOpenAttempts marks every still-open attempt failed; used when the
// booking expires or is cancelled.
func (s *Store) FailOpenAttempts(ctx context.Context, bookingID string) error {
	_, err := s.app.DB().NewQuery(
		`UPDATE payment_attempts SET status = {:to}, updated = {:now}
		 WHERE booking = {:bookingId} AND status = {:open}`,
	).Bind(dbx.Params{
		"to":        string(models.AttemptFailed),
		"now":       types.NowDateTime().String(),
		"bookingId": bookingID,
		"open":      string(models.AttemptCreated),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("%w: fail open attempts: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}
