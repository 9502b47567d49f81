package models

import (
	"time"
)

type PaymentMethod string

const (
	MethodVietQR PaymentMethod = "vietqr"
	MethodPayOS  PaymentMethod = "payos"
	MethodPOS    PaymentMethod = "pos"
)

// ValidMethod reports whether m is one of the supported payment methods.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodVietQR, MethodPayOS, MethodPOS:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptCreated    AttemptStatus = "created"
	AttemptConfirmed  AttemptStatus = "confirmed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptSuperseded AttemptStatus = "superseded"
)

// PaymentAttempt is one offered payment path for a booking. Several
// attempts may exist per booking, at most one ever reaches confirmed.
type PaymentAttempt struct {
	ID        string        `json:"id"`
	BookingID string        `json:"booking_id"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
	Status    AttemptStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// PaymentOption is what the caller receives for one usable method.
type PaymentOption struct {
	Method      PaymentMethod `json:"method"`
	Reference   string        `json:"reference"`
	QRPayload   string        `json:"qr_payload,omitempty"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	AccountInfo string        `json:"account_info,omitempty"`
}

// GatewayOutcome is the terminal result a gateway reports for a reference.
type GatewayOutcome string

const (
	OutcomeSuccess GatewayOutcome = "success"
	OutcomeFailed  GatewayOutcome = "failed"
)
