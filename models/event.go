package models

import (
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventEnded     EventStatus = "ended"
)

type Event struct {
	ID          string      `json:"id"`
	OrganizerID string      `json:"organizer_id"`
	Title       string      `json:"title"`
	Venue       string      `json:"venue"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	SalesStart  time.Time   `json:"sales_start"`
	SalesEnd    time.Time   `json:"sales_end"`
	Status      EventStatus `json:"status"`
}

// Bookable reports whether the event accepts new reservations at the given
// instant: it must be published and inside its sales window. A zero
// SalesEnd means sales stay open until the event starts.
func (e *Event) Bookable(now time.Time) bool {
	if e.Status != EventPublished {
		return false
	}
	if now.Before(e.SalesStart) {
		return false
	}
	end := e.SalesEnd
	if end.IsZero() {
		end = e.StartsAt
	}
	return now.Before(end)
}
