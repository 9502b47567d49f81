package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ticket-booking/internal/services"
	"ticket-booking/internal/status"
	"ticket-booking/models"
)

type stubSource struct {
	mu       sync.Mutex
	expired  []*models.Booking
	listErr  error
	requests int
}

func (s *stubSource) FindExpired(_ context.Context, _ time.Time, _ int) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := s.expired
	s.expired = nil
	return out, nil
}

type stubFinalizer struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *stubFinalizer) Finalize(_ context.Context, bookingID string, _ services.FinalizeOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bookingID)
	return f.errs[bookingID]
}

func (f *stubFinalizer) finalized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestSweeper_ExpiresBatch(t *testing.T) {
	source := &stubSource{expired: []*models.Booking{
		{ID: "bk1"}, {ID: "bk2"}, {ID: "bk3"},
	}}
	finalizer := &stubFinalizer{}

	sw := New(source, finalizer, time.Minute, 200)
	sw.SweepOnce(context.Background())

	assert.ElementsMatch(t, []string{"bk1", "bk2", "bk3"}, finalizer.finalized())
}

func TestSweeper_OneFailureDoesNotAbortBatch(t *testing.T) {
	source := &stubSource{expired: []*models.Booking{
		{ID: "bk1"}, {ID: "bk2"}, {ID: "bk3"},
	}}
	finalizer := &stubFinalizer{errs: map[string]error{
		"bk2": errors.New("store timeout"),
	}}

	sw := New(source, finalizer, time.Minute, 200)
	sw.SweepOnce(context.Background())

	// bk2 failed but bk1 and bk3 were still processed.
	assert.ElementsMatch(t, []string{"bk1", "bk2", "bk3"}, finalizer.finalized())
}

func TestSweeper_AlreadyFinalizedIsSuccess(t *testing.T) {
	source := &stubSource{expired: []*models.Booking{{ID: "bk1"}}}
	finalizer := &stubFinalizer{errs: map[string]error{
		"bk1": status.ErrAlreadyFinalized,
	}}

	sw := New(source, finalizer, time.Minute, 200)
	sw.SweepOnce(context.Background())

	assert.Equal(t, []string{"bk1"}, finalizer.finalized())
}

func TestSweeper_ListErrorSkipsPass(t *testing.T) {
	source := &stubSource{listErr: errors.New("db locked")}
	finalizer := &stubFinalizer{}

	sw := New(source, finalizer, time.Minute, 200)
	sw.SweepOnce(context.Background())

	assert.Empty(t, finalizer.finalized())
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	source := &stubSource{}
	finalizer := &stubFinalizer{}

	sw := New(source, finalizer, 10*time.Millisecond, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.GreaterOrEqual(t, source.requests, 2, "expected the immediate pass plus ticks")
}
