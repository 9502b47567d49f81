package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-booking/internal/inventory"
	"ticket-booking/internal/status"
	"ticket-booking/internal/sweeper"
	"ticket-booking/monitoring"
)

type AdminHandler struct {
	app     *pocketbase.PocketBase
	ledger  *inventory.Ledger
	sweeper *sweeper.Sweeper
}

func NewAdminHandler(app *pocketbase.PocketBase, ledger *inventory.Ledger, sw *sweeper.Sweeper) *AdminHandler {
	return &AdminHandler{app: app, ledger: ledger, sweeper: sw}
}

func (h *AdminHandler) requireAdmin(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	return nil
}

type capacityRequest struct {
	TicketTypeID string `json:"ticket_type_id"`
	Delta        int    `json:"delta"`
}

// AdjustCapacity grows or shrinks a ticket type. Shrinking never touches
// units already held or sold; it only removes still-available ones, so a
// shrink below the currently available count is rejected.
func (h *AdminHandler) AdjustCapacity(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	var req capacityRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketTypeID == "" || req.Delta == 0 {
		return apis.NewBadRequestError("Ticket type and non-zero delta required", nil)
	}

	ctx := e.Request.Context()

	if err := h.ledger.AdjustCapacity(ctx, req.TicketTypeID, req.Delta); err != nil {
		if errors.Is(err, status.ErrInsufficientInventory) {
			return apis.NewApiError(http.StatusConflict, "Cannot remove units that are held or sold", nil)
		}
		slog.Error("admin: adjust capacity", "ticket_type", req.TicketTypeID, "delta", req.Delta, "error", err)
		return apis.NewInternalServerError("Capacity adjustment failed", nil)
	}

	available, err := h.ledger.Available(ctx, req.TicketTypeID)
	if err != nil {
		return apis.NewInternalServerError("Failed to read availability", nil)
	}
	monitoring.SetAvailable(req.TicketTypeID, available)

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_type_id": req.TicketTypeID,
		"available":      available,
	})
}

// Sweep runs one expiration pass on demand, ahead of the background
// schedule. Useful after an incident leaves stranded awaiting_payment
// bookings.
func (h *AdminHandler) Sweep(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	expired, failed := h.sweeper.SweepOnce(e.Request.Context())

	return e.JSON(http.StatusOK, map[string]any{
		"expired": expired,
		"failed":  failed,
	})
}
