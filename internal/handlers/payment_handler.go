package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-booking/internal/services"
	"ticket-booking/internal/services/gateway/payos"
	"ticket-booking/internal/services/gateway/pos"
	"ticket-booking/internal/services/gateway/vietqr"
	"ticket-booking/internal/status"
	"ticket-booking/models"
)

type PaymentHandler struct {
	app      *pocketbase.PocketBase
	payments *services.PaymentService

	vietqr *vietqr.Provider
	payos  *payos.Provider
	pos    *pos.Provider
}

func NewPaymentHandler(app *pocketbase.PocketBase, payments *services.PaymentService, vq *vietqr.Provider, po *payos.Provider, ps *pos.Provider) *PaymentHandler {
	return &PaymentHandler{
		app:      app,
		payments: payments,
		vietqr:   vq,
		payos:    po,
		pos:      ps,
	}
}

type vietqrWebhook struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
}

// VietQRWebhook handles bank transfer confirmations. The body is verified
// against the shared webhook key before anything is parsed out of it.
func (h *PaymentHandler) VietQRWebhook(e *core.RequestEvent) error {
	if h.vietqr == nil {
		return apis.NewNotFoundError("Method not configured", nil)
	}

	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Invalid body", err)
	}

	signature := e.Request.Header.Get("X-Signature")
	if !h.vietqr.VerifyWebhook(body, signature) {
		slog.Warn("payment: vietqr webhook bad signature")
		return apis.NewUnauthorizedError("Invalid signature", nil)
	}

	var hook vietqrWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}
	if hook.Reference == "" {
		return apis.NewBadRequestError("Missing reference", nil)
	}

	outcome := models.OutcomeSuccess
	if hook.Status != "" && hook.Status != "success" && hook.Status != "completed" {
		outcome = models.OutcomeFailed
	}

	return h.dispatch(e, models.MethodVietQR, hook.Reference, outcome)
}

type payosWebhook struct {
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature"`
}

// PayOSWebhook handles hosted checkout confirmations. PayOS signs the data
// object, with the signature carried inside the body.
func (h *PaymentHandler) PayOSWebhook(e *core.RequestEvent) error {
	if h.payos == nil {
		return apis.NewNotFoundError("Method not configured", nil)
	}

	var hook payosWebhook
	if err := e.BindBody(&hook); err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}
	if !h.payos.VerifyWebhook(hook.Data, hook.Signature) {
		slog.Warn("payment: payos webhook bad signature")
		return apis.NewUnauthorizedError("Invalid signature", nil)
	}

	reference, _ := hook.Data["orderCode"].(string)
	if reference == "" {
		if num, ok := hook.Data["orderCode"].(float64); ok {
			reference = strconv.FormatFloat(num, 'f', -1, 64)
		}
	}
	if reference == "" {
		return apis.NewBadRequestError("Missing order code", nil)
	}

	outcome := models.OutcomeFailed
	if code, _ := hook.Data["code"].(string); code == "00" {
		outcome = models.OutcomeSuccess
	}

	return h.dispatch(e, models.MethodPayOS, reference, outcome)
}

type posConfirmRequest struct {
	Reference   string `json:"reference"`
	OperatorPIN string `json:"operator_pin"`
}

// POSConfirm is the operator-facing counter confirmation. It behaves like
// a webhook internally so all three methods settle identically.
func (h *PaymentHandler) POSConfirm(e *core.RequestEvent) error {
	if h.pos == nil {
		return apis.NewNotFoundError("Method not configured", nil)
	}

	var req posConfirmRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if !h.pos.VerifyOperatorPIN(req.OperatorPIN) {
		slog.Warn("payment: pos confirm bad pin")
		return apis.NewUnauthorizedError("Invalid operator PIN", nil)
	}

	return h.dispatch(e, models.MethodPOS, req.Reference, models.OutcomeSuccess)
}

// dispatch routes a verified gateway outcome into the orchestrator and
// maps its errors to HTTP. Duplicates are already swallowed downstream.
func (h *PaymentHandler) dispatch(e *core.RequestEvent, method models.PaymentMethod, reference string, outcome models.GatewayOutcome) error {
	err := h.payments.OnGatewayNotification(e.Request.Context(), method, reference, outcome)
	if err != nil {
		if errors.Is(err, status.ErrRefNotFound) {
			return apis.NewNotFoundError("Unknown payment reference", nil)
		}
		slog.Error("payment: notification", "method", method, "reference", reference, "error", err)
		return apis.NewInternalServerError("Payment processing failed", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}

// Status polls the state of one payment attempt.
func (h *PaymentHandler) Status(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	method := models.PaymentMethod(e.Request.PathValue("method"))
	if !models.ValidMethod(method) {
		return apis.NewBadRequestError("Unknown payment method", nil)
	}
	reference := e.Request.PathValue("reference")

	st, err := h.payments.SessionStatus(e.Request.Context(), method, reference)
	if err != nil {
		return apis.NewNotFoundError("Payment not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": st})
}
