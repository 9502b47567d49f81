// Package pos issues point-of-sale transaction codes. There is no external
// callback: an operator confirms the code at the counter, which feeds the
// same finalize path as the webhooks.
package pos

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/models"
	"ticket-booking/utils"
)

type Config struct {
	// OperatorPINHash is the bcrypt hash of the counter operator PIN.
	OperatorPINHash string `json:"operatorPinHash" mapstructure:"operator_pin_hash"`
}

type Provider struct {
	cfg *Config
}

func New(cfg *Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Method() models.PaymentMethod { return models.MethodPOS }

// CreateReference generates the transaction code the buyer presents at the
// counter. Purely local, cannot fail over the network.
func (p *Provider) CreateReference(_ context.Context, inv gateway.Invoice) (*models.PaymentOption, error) {
	code, err := utils.GenerateCode(5)
	if err != nil {
		return nil, err
	}
	reference := fmt.Sprintf("POS-%s", code)

	return &models.PaymentOption{
		Method:    models.MethodPOS,
		Reference: reference,
	}, nil
}

// VerifyOperatorPIN checks a counter operator's PIN against the configured
// bcrypt hash.
func (p *Provider) VerifyOperatorPIN(pin string) bool {
	if p.cfg.OperatorPINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.cfg.OperatorPINHash), []byte(pin)) == nil
}
