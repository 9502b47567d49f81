package notify

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"ticket-booking/models"
)

// PubNubSink pushes booking transitions to the owner's personal channel
// and to a per-booking channel that payment pages subscribe to.
type PubNubSink struct {
	pn *pubnub.PubNub
}

func NewPubNubSink(pn *pubnub.PubNub) *PubNubSink {
	return &PubNubSink{pn: pn}
}

func (s *PubNubSink) BookingStatusChanged(_ context.Context, booking *models.Booking) {
	message := map[string]any{
		"type":       "booking_status",
		"booking_id": booking.ID,
		"event_id":   booking.EventID,
		"status":     string(booking.Status),
		"expires_at": booking.ExpiresAt.Unix(),
	}

	for _, channel := range []string{
		fmt.Sprintf("user-%s", booking.UserID),
		fmt.Sprintf("booking-%s", booking.ID),
	} {
		_, _, err := s.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			slog.Warn("notify: pubnub publish", "channel", channel, "error", err)
		}
	}
}
