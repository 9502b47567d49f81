package store

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-booking/models"
)

func bookingFromRecord(rec *core.Record) (*models.Booking, error) {
	var items []models.LineItem
	if err := rec.UnmarshalJSONField("line_items", &items); err != nil {
		return nil, fmt.Errorf("store: booking %s line items: %w", rec.Id, err)
	}
	return &models.Booking{
		ID:          rec.Id,
		UserID:      rec.GetString("user"),
		EventID:     rec.GetString("event"),
		LineItems:   items,
		TotalAmount: decimal.NewFromFloat(rec.GetFloat("total_amount")),
		Status:      models.BookingStatus(rec.GetString("status")),
		CreatedAt:   rec.GetDateTime("created").Time(),
		ExpiresAt:   rec.GetDateTime("expires_at").Time(),
	}, nil
}

func ticketFromRecord(rec *core.Record) models.Ticket {
	return models.Ticket{
		ID:           rec.Id,
		BookingID:    rec.GetString("booking"),
		EventID:      rec.GetString("event"),
		TicketTypeID: rec.GetString("ticket_type"),
		Seat: models.Seat{
			Section: rec.GetString("seat_section"),
			Row:     rec.GetString("seat_row"),
			Number:  rec.GetString("seat_number"),
		},
		Status:    models.TicketStatus(rec.GetString("status")),
		CreatedAt: rec.GetDateTime("created").Time(),
	}
}

func attemptFromRecord(rec *core.Record) models.PaymentAttempt {
	return models.PaymentAttempt{
		ID:        rec.Id,
		BookingID: rec.GetString("booking"),
		Method:    models.PaymentMethod(rec.GetString("method")),
		Reference: rec.GetString("reference"),
		Status:    models.AttemptStatus(rec.GetString("status")),
		CreatedAt: rec.GetDateTime("created").Time(),
	}
}

func ticketTypeFromRecord(rec *core.Record) *models.TicketType {
	return &models.TicketType{
		ID:        rec.Id,
		EventID:   rec.GetString("event"),
		Name:      rec.GetString("name"),
		Price:     decimal.NewFromFloat(rec.GetFloat("price")),
		Total:     rec.GetInt("total"),
		Available: rec.GetInt("available"),
	}
}
