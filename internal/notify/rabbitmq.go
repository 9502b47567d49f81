package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ticket-booking/models"
)

const bookingEventsQueue = "booking.events"

// BookingEvent is the wire form of a booking status change published to
// the broker for downstream consumers (ticket delivery, analytics).
type BookingEvent struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	Status      string `json:"status"`
	TotalAmount string `json:"total_amount"`
	OccurredAt  int64  `json:"occurred_at"`
}

// AMQPSink publishes booking events to a durable queue. The connection is
// lazy and re-dialed after failures so a broker outage degrades to dropped
// notifications instead of failed bookings.
type AMQPSink struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPSink(url string) *AMQPSink {
	return &AMQPSink{url: url}
}

func (s *AMQPSink) BookingStatusChanged(ctx context.Context, booking *models.Booking) {
	event := BookingEvent{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		EventID:     booking.EventID,
		Status:      string(booking.Status),
		TotalAmount: booking.TotalAmount.String(),
		OccurredAt:  time.Now().Unix(),
	}

	if err := s.publish(ctx, event); err != nil {
		slog.Warn("notify: amqp publish", "booking", booking.ID, "error", err)
	}
}

func (s *AMQPSink) publish(ctx context.Context, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		"",
		bookingEventsQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		s.reset()
	}
	return err
}

func (s *AMQPSink) channel() (*amqp.Channel, error) {
	if s.ch != nil {
		return s.ch, nil
	}

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(bookingEventsQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	s.conn = conn
	s.ch = ch
	return ch, nil
}

func (s *AMQPSink) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close releases the broker connection.
func (s *AMQPSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
