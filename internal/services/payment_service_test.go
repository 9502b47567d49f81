package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/internal/status"
	"ticket-booking/models"
)

func awaitingBooking(t *testing.T, store *fakeStore) *models.Booking {
	t.Helper()
	b := &models.Booking{
		UserID:      "user1",
		EventID:     "evt1",
		LineItems:   []models.LineItem{{TicketTypeID: "vip", Quantity: 1, UnitPrice: decimal.NewFromInt(500)}},
		TotalAmount: decimal.NewFromInt(500),
		Status:      models.BookingPending,
		ExpiresAt:   time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, store.CreateBookingWithTickets(context.Background(), b))
	require.NoError(t, store.TransitionBooking(context.Background(), b.ID, models.BookingAwaitingPayment, models.BookingPending))
	b.Status = models.BookingAwaitingPayment
	return b
}

func TestPaymentService_CreateOptions_AllMethods(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)

	providers := []gateway.Provider{
		&fakeProvider{method: models.MethodVietQR},
		&fakeProvider{method: models.MethodPayOS},
		&fakeProvider{method: models.MethodPOS},
	}
	svc := NewPaymentService(nil, store, &fakeFinalizer{}, providers, 15*time.Minute)

	options, err := svc.CreateOptions(context.Background(), booking, nil)
	require.NoError(t, err)
	assert.Len(t, options, 3)

	methods := map[models.PaymentMethod]bool{}
	for _, o := range options {
		methods[o.Method] = true
		a, err := store.FindAttemptByReference(context.Background(), o.Method, o.Reference)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, a.BookingID)
		assert.Equal(t, models.AttemptCreated, a.Status)
	}
	assert.Len(t, methods, 3)
}

func TestPaymentService_CreateOptions_MethodIsolation(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)

	providers := []gateway.Provider{
		&fakeProvider{method: models.MethodVietQR},
		&fakeProvider{method: models.MethodPayOS, err: fmt.Errorf("payos: upstream 502")},
	}
	svc := NewPaymentService(nil, store, &fakeFinalizer{}, providers, 15*time.Minute)

	options, err := svc.CreateOptions(context.Background(), booking, nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, models.MethodVietQR, options[0].Method)

	// The broken method still leaves an audit row marked failed.
	failed := 0
	for _, a := range store.attempts {
		if a.Method == models.MethodPayOS {
			assert.Equal(t, models.AttemptFailed, a.Status)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestPaymentService_CreateOptions_AllFail(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)

	providers := []gateway.Provider{
		&fakeProvider{method: models.MethodVietQR, err: fmt.Errorf("bank down")},
		&fakeProvider{method: models.MethodPayOS, err: fmt.Errorf("payos down")},
	}
	svc := NewPaymentService(nil, store, &fakeFinalizer{}, providers, 15*time.Minute)

	options, err := svc.CreateOptions(context.Background(), booking, nil)
	assert.ErrorIs(t, err, status.ErrNoPaymentOptions)
	assert.Empty(t, options)

	// The booking is untouched; the client may retry options later.
	got, _ := store.GetBooking(context.Background(), booking.ID)
	assert.Equal(t, models.BookingAwaitingPayment, got.Status)
}

func TestPaymentService_CreateOptions_WrongState(t *testing.T) {
	store := newFakeStore()
	booking := &models.Booking{Status: models.BookingConfirmed, ID: "bk1"}

	svc := NewPaymentService(nil, store, &fakeFinalizer{}, nil, 15*time.Minute)

	_, err := svc.CreateOptions(context.Background(), booking, nil)
	assert.Error(t, err)
}

func TestPaymentService_OnGatewayNotification_Success(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)
	finalizer := &fakeFinalizer{}

	attempt := &models.PaymentAttempt{BookingID: booking.ID, Method: models.MethodVietQR, Reference: "TKTABC", Status: models.AttemptCreated}
	require.NoError(t, store.CreateAttempt(context.Background(), attempt, nil))

	svc := NewPaymentService(nil, store, finalizer, nil, 15*time.Minute)

	err := svc.OnGatewayNotification(context.Background(), models.MethodVietQR, "TKTABC", models.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1, finalizer.callCount())
}

func TestPaymentService_OnGatewayNotification_DuplicateDelivery(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)
	finalizer := &fakeFinalizer{err: status.ErrAlreadyFinalized}

	attempt := &models.PaymentAttempt{BookingID: booking.ID, Method: models.MethodVietQR, Reference: "TKTDUP", Status: models.AttemptCreated}
	require.NoError(t, store.CreateAttempt(context.Background(), attempt, nil))

	svc := NewPaymentService(nil, store, finalizer, nil, 15*time.Minute)

	// Gateways redeliver; the duplicate must be answered with success.
	err := svc.OnGatewayNotification(context.Background(), models.MethodVietQR, "TKTDUP", models.OutcomeSuccess)
	assert.NoError(t, err)
}

func TestPaymentService_OnGatewayNotification_FailedOutcome(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)
	finalizer := &fakeFinalizer{}

	attempt := &models.PaymentAttempt{BookingID: booking.ID, Method: models.MethodPayOS, Reference: "9001", Status: models.AttemptCreated}
	require.NoError(t, store.CreateAttempt(context.Background(), attempt, nil))

	svc := NewPaymentService(nil, store, finalizer, nil, 15*time.Minute)

	err := svc.OnGatewayNotification(context.Background(), models.MethodPayOS, "9001", models.OutcomeFailed)
	require.NoError(t, err)

	// A failed attempt never reaches the finalizer and the booking stays
	// payable through the other attempts.
	assert.Equal(t, 0, finalizer.callCount())
	assert.Equal(t, models.AttemptFailed, store.attemptStatus(attempt.ID))
	got, _ := store.GetBooking(context.Background(), booking.ID)
	assert.Equal(t, models.BookingAwaitingPayment, got.Status)
}

func TestPaymentService_OnGatewayNotification_UnknownReference(t *testing.T) {
	store := newFakeStore()
	svc := NewPaymentService(nil, store, &fakeFinalizer{}, nil, 15*time.Minute)

	err := svc.OnGatewayNotification(context.Background(), models.MethodVietQR, "NOPE", models.OutcomeSuccess)
	assert.ErrorIs(t, err, status.ErrRefNotFound)
}

func TestPaymentService_OnGatewayNotification_FinalizerError(t *testing.T) {
	store := newFakeStore()
	booking := awaitingBooking(t, store)
	finalizer := &fakeFinalizer{err: errors.New("store offline")}

	attempt := &models.PaymentAttempt{BookingID: booking.ID, Method: models.MethodVietQR, Reference: "TKTERR", Status: models.AttemptCreated}
	require.NoError(t, store.CreateAttempt(context.Background(), attempt, nil))

	svc := NewPaymentService(nil, store, finalizer, nil, 15*time.Minute)

	// Real failures must propagate so the gateway retries later.
	err := svc.OnGatewayNotification(context.Background(), models.MethodVietQR, "TKTERR", models.OutcomeSuccess)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, status.ErrAlreadyFinalized)
}

func TestPaymentService_SessionStatus_CacheHit(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	store := newFakeStore()
	svc := NewPaymentService(db, store, &fakeFinalizer{}, nil, 15*time.Minute)

	redisMock.ExpectHGet("payment:vietqr:TKTXYZ", "status").SetVal("created")

	st, err := svc.SessionStatus(context.Background(), models.MethodVietQR, "TKTXYZ")
	require.NoError(t, err)
	assert.Equal(t, "created", st)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestPaymentService_SessionStatus_CacheMissFallsBack(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	store := newFakeStore()
	booking := awaitingBooking(t, store)

	attempt := &models.PaymentAttempt{BookingID: booking.ID, Method: models.MethodPOS, Reference: "POS-1", Status: models.AttemptConfirmed}
	require.NoError(t, store.CreateAttempt(context.Background(), attempt, nil))

	svc := NewPaymentService(db, store, &fakeFinalizer{}, nil, 15*time.Minute)

	redisMock.ExpectHGet("payment:pos:POS-1", "status").RedisNil()

	st, err := svc.SessionStatus(context.Background(), models.MethodPOS, "POS-1")
	require.NoError(t, err)
	assert.Equal(t, string(models.AttemptConfirmed), st)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
