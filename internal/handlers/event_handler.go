package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-booking/internal/store"
	"ticket-booking/monitoring"
)

type EventHandler struct {
	app   *pocketbase.PocketBase
	store *store.Store
}

func NewEventHandler(app *pocketbase.PocketBase, st *store.Store) *EventHandler {
	return &EventHandler{app: app, store: st}
}

// Availability returns live per-type availability for one event. Counts
// come straight from the counter rows, so a number shown here can still
// be gone by the time the client reserves.
func (h *EventHandler) Availability(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	event, err := h.store.GetEvent(ctx, eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	types, err := h.store.ListTicketTypes(ctx, eventID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load ticket types", nil)
	}

	availability := make([]map[string]any, 0, len(types))
	for _, tt := range types {
		monitoring.SetAvailable(tt.ID, tt.Available)
		availability = append(availability, map[string]any{
			"ticket_type_id": tt.ID,
			"name":           tt.Name,
			"price":          tt.Price,
			"total":          tt.Total,
			"available":      tt.Available,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":     event.ID,
		"event_title":  event.Title,
		"event_status": string(event.Status),
		"ticket_types": availability,
	})
}
