// Package payos creates hosted-checkout payment links through the PayOS
// merchant API. Requests carry an HMAC-SHA256 signature over the
// alphabetically ordered field string; webhook deliveries are verified the
// same way.
package payos

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/models"
)

type Config struct {
	BaseURL     string `json:"baseUrl" mapstructure:"base_url"`
	ClientID    string `json:"clientId" mapstructure:"client_id"`
	APIKey      string `json:"apiKey" mapstructure:"api_key"`
	ChecksumKey string `json:"checksumKey" mapstructure:"checksum_key"`
	ReturnURL   string `json:"returnUrl" mapstructure:"return_url"`
	CancelURL   string `json:"cancelUrl" mapstructure:"cancel_url"`
}

type Provider struct {
	cfg    *Config
	client *Client
}

func New(_ context.Context, cfg *Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("payos: client credentials not configured")
	}
	return &Provider{
		cfg:    cfg,
		client: newClient(cfg),
	}, nil
}

func (p *Provider) Method() models.PaymentMethod { return models.MethodPayOS }

// CreateReference asks PayOS for a checkout link. The returned order code
// is the reference the webhook reports back.
func (p *Provider) CreateReference(ctx context.Context, inv gateway.Invoice) (*models.PaymentOption, error) {
	orderCode, err := newOrderCode()
	if err != nil {
		return nil, err
	}

	req := &checkoutRequest{
		OrderCode:   orderCode,
		Amount:      inv.Amount.IntPart(),
		Description: inv.Description,
		ReturnURL:   p.cfg.ReturnURL,
		CancelURL:   p.cfg.CancelURL,
	}
	req.Signature = p.signCheckout(req)

	checkoutURL, err := p.client.createPaymentLink(ctx, req)
	if err != nil {
		return nil, err
	}

	return &models.PaymentOption{
		Method:      models.MethodPayOS,
		Reference:   fmt.Sprintf("%d", orderCode),
		CheckoutURL: checkoutURL,
	}, nil
}

// signCheckout produces the create-request signature:
// HMAC-SHA256("amount=..&cancelUrl=..&description=..&orderCode=..&returnUrl=..").
func (p *Provider) signCheckout(req *checkoutRequest) string {
	data := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)
	return gateway.Hmac256([]byte(data), []byte(p.cfg.ChecksumKey))
}

// VerifyWebhook checks the digest over the webhook's data object, built
// from its alphabetically sorted key=value pairs.
func (p *Provider) VerifyWebhook(data map[string]any, receivedSignature string) bool {
	return gateway.VerifyHmac256([]byte(canonicalize(data)), []byte(p.cfg.ChecksumKey), receivedSignature)
}

func canonicalize(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := data[k]
		if v == nil {
			v = ""
		}
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, "&")
}
