package payos

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"ticket-booking/internal/status"
)

type Client struct {
	baseURL  string
	clientID string
	apiKey   string

	hc *http.Client
}

func newClient(cfg *Config) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		clientID: cfg.ClientID,
		apiKey:   cfg.APIKey,

		// request-level timeout; a slow gateway degrades this method only.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type checkoutRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

// createPaymentLink calls POST /v2/payment-requests and returns the hosted
// checkout URL.
func (c *Client) createPaymentLink(ctx context.Context, reqBody *checkoutRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("payos: marshal request: %w", err)
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("payos: base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String()+"/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("payos: http.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: payos: %v", status.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: payos: http status %d", status.ErrGatewayUnavailable, resp.StatusCode)
	}

	var reply struct {
		Code string `json:"code"`
		Desc string `json:"desc"`
		Data struct {
			CheckoutURL string `json:"checkoutUrl"`
			OrderCode   int64  `json:"orderCode"`
			Status      string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("payos: decode response: %w", err)
	}
	if reply.Code != "00" {
		return "", fmt.Errorf("%w: payos: code %s (%s)", status.ErrGatewayUnavailable, reply.Code, reply.Desc)
	}
	return reply.Data.CheckoutURL, nil
}

// newOrderCode generates a random positive order code inside PayOS's
// accepted range.
func newOrderCode() (int64, error) {
	max := big.NewInt(9007199254740991) // PayOS caps order codes at 2^53-1
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	return n.Int64() + 1, nil
}
