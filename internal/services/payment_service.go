package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/internal/status"
	"ticket-booking/models"
	"ticket-booking/monitoring"
	"ticket-booking/utils"
)

// Finalizer is the reservation side of the orchestrator boundary.
type Finalizer interface {
	Finalize(ctx context.Context, bookingID string, outcome FinalizeOutcome) error
}

// PaymentService turns an awaiting_payment booking into a set of
// independent payment attempts and routes gateway confirmations into the
// finalize path. Exactly one attempt per booking can ever win.
type PaymentService struct {
	Redis *redis.Client

	store     AttemptStore
	finalizer Finalizer
	providers map[models.PaymentMethod]gateway.Provider
	breakers  map[models.PaymentMethod]*utils.CircuitBreaker

	sessionTTL time.Duration
}

func NewPaymentService(redisClient *redis.Client, store AttemptStore, finalizer Finalizer, providers []gateway.Provider, sessionTTL time.Duration) *PaymentService {
	s := &PaymentService{
		Redis:      redisClient,
		store:      store,
		finalizer:  finalizer,
		providers:  make(map[models.PaymentMethod]gateway.Provider, len(providers)),
		breakers:   make(map[models.PaymentMethod]*utils.CircuitBreaker, len(providers)),
		sessionTTL: sessionTTL,
	}
	for _, p := range providers {
		s.providers[p.Method()] = p
		s.breakers[p.Method()] = utils.NewCircuitBreaker("gateway-" + string(p.Method()))
	}
	return s
}

// Methods lists the configured payment methods.
func (s *PaymentService) Methods() []models.PaymentMethod {
	out := make([]models.PaymentMethod, 0, len(s.providers))
	for m := range s.providers {
		out = append(out, m)
	}
	return out
}

// CreateOptions produces one payment attempt per requested method. Methods
// are strictly isolated: a gateway error records that attempt as failed and
// degrades only that option. When every requested method fails the booking
// stays awaiting_payment and the caller gets ErrNoPaymentOptions; the
// booking itself is fine, there is just nothing to pay with right now.
func (s *PaymentService) CreateOptions(ctx context.Context, booking *models.Booking, methods []models.PaymentMethod) ([]models.PaymentOption, error) {
	if booking.Status != models.BookingAwaitingPayment {
		return nil, fmt.Errorf("payment: booking %s is %s, not awaiting payment", booking.ID, booking.Status)
	}
	if len(methods) == 0 {
		methods = s.Methods()
	}

	inv := gateway.Invoice{
		BookingID:   booking.ID,
		Amount:      booking.TotalAmount,
		Description: fmt.Sprintf("Tickets %s", booking.ID),
	}

	options := make([]models.PaymentOption, 0, len(methods))
	for _, method := range methods {
		provider, ok := s.providers[method]
		if !ok {
			slog.Warn("payment: method not configured", "method", method)
			continue
		}

		option, err := s.createOne(ctx, provider, inv)
		if err != nil {
			monitoring.TrackGatewayRequest(string(method), "error")
			slog.Error("payment: create reference", "booking", booking.ID, "method", method, "error", err)
			s.recordFailedAttempt(ctx, booking.ID, method)
			continue
		}
		monitoring.TrackGatewayRequest(string(method), "ok")

		attempt := &models.PaymentAttempt{
			BookingID: booking.ID,
			Method:    method,
			Reference: option.Reference,
			Status:    models.AttemptCreated,
		}
		if err := s.store.CreateAttempt(ctx, attempt, option); err != nil {
			slog.Error("payment: persist attempt", "booking", booking.ID, "method", method, "error", err)
			continue
		}

		s.cacheSession(ctx, booking, attempt)
		options = append(options, *option)
	}

	if len(options) == 0 {
		return nil, status.ErrNoPaymentOptions
	}
	return options, nil
}

func (s *PaymentService) createOne(ctx context.Context, provider gateway.Provider, inv gateway.Invoice) (*models.PaymentOption, error) {
	breaker := s.breakers[provider.Method()]
	result, err := breaker.Execute(ctx, func() (interface{}, error) {
		return provider.CreateReference(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.PaymentOption), nil
}

// recordFailedAttempt keeps an audit row for a method that could not be
// offered. The placeholder reference keeps the (method, reference) pair
// unique.
func (s *PaymentService) recordFailedAttempt(ctx context.Context, bookingID string, method models.PaymentMethod) {
	code, err := utils.GenerateCode(6)
	if err != nil {
		return
	}
	attempt := &models.PaymentAttempt{
		BookingID: bookingID,
		Method:    method,
		Reference: "unavailable-" + code,
		Status:    models.AttemptFailed,
	}
	if err := s.store.CreateAttempt(ctx, attempt, nil); err != nil {
		slog.Error("payment: record failed attempt", "booking", bookingID, "method", method, "error", err)
	}
}

// cacheSession mirrors the attempt into a Redis hash with the reservation
// window as TTL, for cheap webhook lookups and status polling.
func (s *PaymentService) cacheSession(ctx context.Context, booking *models.Booking, attempt *models.PaymentAttempt) {
	if s.Redis == nil {
		return
	}
	key := sessionKey(attempt.Method, attempt.Reference)
	if err := s.Redis.HSet(ctx, key, map[string]any{
		"booking_id": booking.ID,
		"attempt_id": attempt.ID,
		"amount":     booking.TotalAmount.String(),
		"status":     string(models.AttemptCreated),
		"created_at": time.Now().Unix(),
	}).Err(); err != nil {
		slog.Warn("payment: cache session", "key", key, "error", err)
		return
	}
	s.Redis.Expire(ctx, key, s.sessionTTL)
}

func sessionKey(method models.PaymentMethod, reference string) string {
	return fmt.Sprintf("payment:%s:%s", method, reference)
}

// OnGatewayNotification is the single entry point for all three methods'
// confirmations: bank webhook, hosted-checkout webhook and the POS operator
// action. Gateways redeliver, so a duplicate that finds the booking already
// terminal is answered with success and no side effects.
func (s *PaymentService) OnGatewayNotification(ctx context.Context, method models.PaymentMethod, reference string, outcome models.GatewayOutcome) error {
	attempt, err := s.store.FindAttemptByReference(ctx, method, reference)
	if err != nil {
		return err
	}

	if outcome != models.OutcomeSuccess {
		if err := s.store.MarkAttempt(ctx, attempt.ID, models.AttemptFailed, models.AttemptCreated); err != nil &&
			!errors.Is(err, status.ErrStaleStatus) {
			return err
		}
		s.updateSession(ctx, method, reference, string(models.AttemptFailed))
		return nil
	}

	err = s.finalizer.Finalize(ctx, attempt.BookingID, Confirm(attempt.ID))
	switch {
	case err == nil:
		s.updateSession(ctx, method, reference, string(models.AttemptConfirmed))
		return nil
	case errors.Is(err, status.ErrAlreadyFinalized):
		slog.Info("payment: duplicate confirmation", "method", method, "reference", reference)
		return nil
	default:
		return err
	}
}

func (s *PaymentService) updateSession(ctx context.Context, method models.PaymentMethod, reference, st string) {
	if s.Redis == nil {
		return
	}
	s.Redis.HSet(ctx, sessionKey(method, reference), "status", st)
}

// SessionStatus reads the cached attempt status for polling clients. Cache
// misses fall back to the store.
func (s *PaymentService) SessionStatus(ctx context.Context, method models.PaymentMethod, reference string) (string, error) {
	if s.Redis != nil {
		st, err := s.Redis.HGet(ctx, sessionKey(method, reference), "status").Result()
		if err == nil && st != "" {
			return st, nil
		}
	}
	attempt, err := s.store.FindAttemptByReference(ctx, method, reference)
	if err != nil {
		return "", err
	}
	return string(attempt.Status), nil
}
