package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/internal/status"
	"ticket-booking/models"
)

// fakeStore is an in-memory stand-in for the persistence layer with the
// same compare-and-swap semantics as the SQL-backed store.
type fakeStore struct {
	mu          sync.Mutex
	seq         int
	bookings    map[string]*models.Booking
	attempts    map[string]*models.PaymentAttempt
	events      map[string]*models.Event
	ticketTypes map[string]*models.TicketType
	tickets     map[string]models.TicketStatus

	failCreate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:    make(map[string]*models.Booking),
		attempts:    make(map[string]*models.PaymentAttempt),
		events:      make(map[string]*models.Event),
		ticketTypes: make(map[string]*models.TicketType),
		tickets:     make(map[string]models.TicketStatus),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%03d", prefix, f.seq)
}

func (f *fakeStore) addEvent(e *models.Event) { f.events[e.ID] = e }

func (f *fakeStore) addTicketType(tt *models.TicketType) { f.ticketTypes[tt.ID] = tt }

func (f *fakeStore) CreateBookingWithTickets(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return fmt.Errorf("store: insert failed")
	}
	b.ID = f.nextID("bk")
	b.CreatedAt = time.Now()
	cp := *b
	f.bookings[b.ID] = &cp
	f.tickets[b.ID] = models.TicketReserved
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("store: booking %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetBookingDetail(ctx context.Context, id string) (*models.Booking, error) {
	return f.GetBooking(ctx, id)
}

func (f *fakeStore) ListUserBookings(_ context.Context, userID string, _ int) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionBooking(_ context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("store: booking %s not found", id)
	}
	for _, fr := range from {
		if b.Status == fr && fr.CanTransition(to) {
			b.Status = to
			return nil
		}
	}
	return status.ErrStaleStatus
}

func (f *fakeStore) SetTicketsStatus(_ context.Context, bookingID string, st models.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[bookingID] = st
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("store: event %s not found", id)
	}
	return e, nil
}

func (f *fakeStore) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[id]
	if !ok {
		return nil, fmt.Errorf("store: ticket type %s not found", id)
	}
	return tt, nil
}

func (f *fakeStore) CreateAttempt(_ context.Context, a *models.PaymentAttempt, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.attempts {
		if existing.Method == a.Method && existing.Reference == a.Reference {
			return fmt.Errorf("store: duplicate reference %s/%s", a.Method, a.Reference)
		}
	}
	a.ID = f.nextID("pa")
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetAttempt(_ context.Context, id string) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, fmt.Errorf("store: attempt %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) FindAttemptByReference(_ context.Context, method models.PaymentMethod, reference string) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.Method == method && a.Reference == reference {
			cp := *a
			return &cp, nil
		}
	}
	return nil, status.ErrRefNotFound
}

func (f *fakeStore) MarkAttempt(_ context.Context, id string, to models.AttemptStatus, from ...models.AttemptStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return fmt.Errorf("store: attempt %s not found", id)
	}
	for _, fr := range from {
		if a.Status == fr {
			a.Status = to
			return nil
		}
	}
	return status.ErrStaleStatus
}

func (f *fakeStore) SupersedeSiblings(_ context.Context, bookingID, winnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.BookingID == bookingID && a.ID != winnerID && a.Status == models.AttemptCreated {
			a.Status = models.AttemptSuperseded
		}
	}
	return nil
}

func (f *fakeStore) FailOpenAttempts(_ context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.BookingID == bookingID && a.Status == models.AttemptCreated {
			a.Status = models.AttemptFailed
		}
	}
	return nil
}

func (f *fakeStore) attemptStatus(id string) models.AttemptStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id].Status
}

func (f *fakeStore) ticketStatus(bookingID string) models.TicketStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[bookingID]
}

// recordingNotifier captures every status change pushed through it.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.BookingStatus
}

func (n *recordingNotifier) BookingStatusChanged(_ context.Context, b *models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, b.Status)
}

func (n *recordingNotifier) seen() []models.BookingStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.BookingStatus(nil), n.events...)
}

// fakeProvider is a scriptable payment gateway.
type fakeProvider struct {
	method models.PaymentMethod
	err    error
	refSeq int
	mu     sync.Mutex
}

func (p *fakeProvider) Method() models.PaymentMethod { return p.method }

func (p *fakeProvider) CreateReference(_ context.Context, inv gateway.Invoice) (*models.PaymentOption, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	p.refSeq++
	ref := fmt.Sprintf("%s-ref-%d", p.method, p.refSeq)
	p.mu.Unlock()
	return &models.PaymentOption{
		Method:    p.method,
		Reference: ref,
	}, nil
}

// fakeFinalizer records finalize calls and replies with a scripted error.
type fakeFinalizer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeFinalizer) Finalize(_ context.Context, bookingID string, _ FinalizeOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bookingID)
	return f.err
}

func (f *fakeFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
