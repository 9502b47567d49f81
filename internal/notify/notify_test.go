package notify

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ticket-booking/models"
)

type captureSink struct {
	got []*models.Booking
}

func (c *captureSink) BookingStatusChanged(_ context.Context, b *models.Booking) {
	c.got = append(c.got, b)
}

func TestFanOut_DeliversToEverySink(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	fanout := NewFanOut(a, b)

	booking := &models.Booking{
		ID:          "bk1",
		UserID:      "user1",
		Status:      models.BookingConfirmed,
		TotalAmount: decimal.NewFromInt(500),
	}
	fanout.BookingStatusChanged(context.Background(), booking)

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, "bk1", a.got[0].ID)
}

func TestFanOut_NoSinks(t *testing.T) {
	fanout := NewFanOut()
	assert.NotPanics(t, func() {
		fanout.BookingStatusChanged(context.Background(), &models.Booking{ID: "bk1"})
	})
}
