package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketReserved  TicketStatus = "reserved"
	TicketConfirmed TicketStatus = "confirmed"
	TicketExpired   TicketStatus = "expired"
	TicketCancelled TicketStatus = "cancelled"
)

type TicketType struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Total     int             `json:"total"`
	Available int             `json:"available"`
}

// Seat is an opaque assignment supplied by an external seating collaborator.
type Seat struct {
	Section string `json:"section,omitempty"`
	Row     string `json:"row,omitempty"`
	Number  string `json:"number,omitempty"`
}

type Ticket struct {
	ID           string       `json:"id"`
	BookingID    string       `json:"booking_id"`
	EventID      string       `json:"event_id"`
	TicketTypeID string       `json:"ticket_type_id"`
	Seat         Seat         `json:"seat"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
