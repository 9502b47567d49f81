package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_total",
			Help: "Reservation requests per event and result",
		},
		[]string{"event_id", "status"},
	)

	finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_finalizations_total",
			Help: "Booking finalizations per outcome",
		},
		[]string{"outcome"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Payment gateway calls per method and result",
		},
		[]string{"method", "status"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expiration_sweep_duration_seconds",
			Help:    "Duration of expiration sweep passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	sweptBookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swept_bookings_total",
			Help: "Bookings processed by the expiration sweeper",
		},
		[]string{"result"},
	)

	ticketsAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickets_available",
			Help: "Available units per ticket type",
		},
		[]string{"ticket_type_id"},
	)

	paymentSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_sessions_active",
			Help: "Live payment session hashes in Redis",
		},
	)
)

func TrackReservation(eventID, status string) {
	reservations.WithLabelValues(eventID, status).Inc()
}

func TrackFinalize(outcome string) {
	finalizations.WithLabelValues(outcome).Inc()
}

func TrackGatewayRequest(method, status string) {
	gatewayRequests.WithLabelValues(method, status).Inc()
}

func TrackSweep(duration time.Duration, expired, failed int) {
	sweepDuration.Observe(duration.Seconds())
	sweptBookings.WithLabelValues("expired").Add(float64(expired))
	sweptBookings.WithLabelValues("failed").Add(float64(failed))
}

func SetAvailable(ticketTypeID string, available int) {
	ticketsAvailable.WithLabelValues(ticketTypeID).Set(float64(available))
}

// Monitor samples Redis-backed gauges on a fixed interval.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}
	go monitor.collectMetrics()
	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		keys, err := m.redis.Keys(ctx, "payment:*").Result()
		if err != nil {
			continue
		}
		paymentSessions.Set(float64(len(keys)))
	}
}
