// Package sweeper reclaims inventory from bookings whose payment window
// lapsed. It is the only component allowed to expire bookings, and it is
// safe to run after a crash or restart because expiry is driven entirely
// by persisted state.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticket-booking/internal/services"
	"ticket-booking/internal/status"
	"ticket-booking/models"
	"ticket-booking/monitoring"
)

type BookingSource interface {
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error)
}

type Sweeper struct {
	source    BookingSource
	finalizer services.Finalizer

	interval  time.Duration
	batchSize int
}

func New(source BookingSource, finalizer services.Finalizer, interval time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		source:    source,
		finalizer: finalizer,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. One pass
// runs immediately so a restart reclaims stranded inventory without
// waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper: stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires one batch and reports how many bookings were expired
// and how many failed. Bookings are handled independently: a failure on
// one is logged and the rest of the batch still runs, the failed one is
// retried next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, int) {
	start := time.Now()

	bookings, err := s.source.FindExpired(ctx, start, s.batchSize)
	if err != nil {
		slog.Error("sweeper: list expired", "error", err)
		return 0, 0
	}
	if len(bookings) == 0 {
		return 0, 0
	}

	expired, failed := 0, 0
	for _, booking := range bookings {
		err := s.finalizer.Finalize(ctx, booking.ID, services.Expire())
		switch {
		case err == nil:
			expired++
		case errors.Is(err, status.ErrAlreadyFinalized):
			// Lost the race to a confirmation or cancel. Fine.
		default:
			failed++
			slog.Error("sweeper: expire booking", "booking", booking.ID, "error", err)
		}
	}

	monitoring.TrackSweep(time.Since(start), expired, failed)
	if expired > 0 || failed > 0 {
		slog.Info("sweeper: pass done", "expired", expired, "failed", failed, "took", time.Since(start))
	}
	return expired, failed
}
