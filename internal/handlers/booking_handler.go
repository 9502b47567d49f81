package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-booking/internal/services"
	"ticket-booking/internal/status"
	"ticket-booking/models"
)

type BookingHandler struct {
	app          *pocketbase.PocketBase
	reservations *services.ReservationService
	payments     *services.PaymentService
}

func NewBookingHandler(app *pocketbase.PocketBase, reservations *services.ReservationService, payments *services.PaymentService) *BookingHandler {
	return &BookingHandler{
		app:          app,
		reservations: reservations,
		payments:     payments,
	}
}

type reserveRequest struct {
	EventID string `json:"event_id"`
	Items   []struct {
		TicketTypeID string        `json:"ticket_type_id"`
		Quantity     int           `json:"quantity"`
		Seats        []models.Seat `json:"seats,omitempty"`
	} `json:"items"`
	Methods []string `json:"payment_methods,omitempty"`
}

// Reserve creates a booking and immediately offers payment options for it.
// The two phases are deliberately decoupled: if every payment method is
// down the reservation still stands and the client can retry options while
// the hold window lasts.
func (h *BookingHandler) Reserve(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req reserveRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" || len(req.Items) == 0 {
		return apis.NewBadRequestError("Event and at least one item required", nil)
	}

	// Everything is validated before any inventory is touched; a rejected
	// request must leave no booking behind.
	methods := make([]models.PaymentMethod, 0, len(req.Methods))
	for _, m := range req.Methods {
		pm := models.PaymentMethod(m)
		if !models.ValidMethod(pm) {
			return apis.NewBadRequestError("Unknown payment method: "+m, nil)
		}
		methods = append(methods, pm)
	}

	items := make([]models.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return apis.NewBadRequestError("Quantity must be positive", nil)
		}
		if len(it.Seats) > 0 && len(it.Seats) != it.Quantity {
			return apis.NewBadRequestError("Seat count must match quantity", nil)
		}
		items = append(items, models.LineItem{
			TicketTypeID: it.TicketTypeID,
			Quantity:     it.Quantity,
			Seats:        it.Seats,
		})
	}

	ctx := e.Request.Context()

	booking, err := h.reservations.Reserve(ctx, e.Auth.Id, req.EventID, items)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrInsufficientInventory):
			return apis.NewApiError(http.StatusConflict, "Not enough tickets available", nil)
		case errors.Is(err, status.ErrEventNotBookable):
			return apis.NewBadRequestError("Event is not open for sale", nil)
		default:
			slog.Error("booking: reserve", "user", e.Auth.Id, "event", req.EventID, "error", err)
			return apis.NewInternalServerError("Reservation failed", nil)
		}
	}

	options, err := h.payments.CreateOptions(ctx, booking, methods)
	if err != nil && !errors.Is(err, status.ErrNoPaymentOptions) {
		slog.Error("booking: payment options", "booking", booking.ID, "error", err)
	}

	resp := map[string]any{
		"booking":    booking,
		"expires_at": booking.ExpiresAt.Unix(),
	}
	if len(options) > 0 {
		resp["payment_options"] = options
	} else {
		resp["payment_options"] = []models.PaymentOption{}
		resp["payment_retry"] = true
	}

	return e.JSON(http.StatusCreated, resp)
}

// GetBooking returns one booking with its tickets and payment attempts.
// Only the owner can read it.
func (h *BookingHandler) GetBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")

	booking, err := h.reservations.GetBooking(e.Request.Context(), bookingID)
	if err != nil {
		return apis.NewNotFoundError("Booking not found", nil)
	}
	if booking.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, booking)
}

// PaymentOptions re-offers payment options for a booking that is still
// awaiting payment, for clients retrying after a gateway outage.
func (h *BookingHandler) PaymentOptions(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	ctx := e.Request.Context()

	booking, err := h.reservations.GetBooking(ctx, bookingID)
	if err != nil {
		return apis.NewNotFoundError("Booking not found", nil)
	}
	if booking.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	options, err := h.payments.CreateOptions(ctx, booking, nil)
	if err != nil {
		if errors.Is(err, status.ErrNoPaymentOptions) {
			return apis.NewApiError(http.StatusServiceUnavailable, "No payment method is available right now", nil)
		}
		return apis.NewBadRequestError("Cannot offer payment for this booking", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"payment_options": options})
}

// Cancel voluntarily releases a booking before payment.
func (h *BookingHandler) Cancel(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	ctx := e.Request.Context()

	booking, err := h.reservations.GetBooking(ctx, bookingID)
	if err != nil {
		return apis.NewNotFoundError("Booking not found", nil)
	}
	if booking.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	if err := h.reservations.Finalize(ctx, bookingID, services.Cancel()); err != nil {
		if errors.Is(err, status.ErrAlreadyFinalized) {
			return apis.NewBadRequestError("Booking is already settled", nil)
		}
		slog.Error("booking: cancel", "booking", bookingID, "error", err)
		return apis.NewInternalServerError("Cancel failed", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": string(models.BookingCancelled)})
}

// History lists the caller's bookings, newest first.
func (h *BookingHandler) History(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookings, err := h.reservations.History(e.Request.Context(), e.Auth.Id, 50)
	if err != nil {
		slog.Error("booking: history", "user", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to load bookings", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"bookings": bookings})
}
