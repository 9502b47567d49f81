// Package vietqr issues NAPAS VietQR bank-transfer references. The QR
// payload is built locally from the configured beneficiary account; settled
// transfers arrive either through the bank's PubNub channel or through the
// HMAC-verified webhook.
package vietqr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"ticket-booking/internal/services/gateway"
	"ticket-booking/internal/status"
	"ticket-booking/models"
	"ticket-booking/utils"
)

type Config struct {
	BankBIN       string `json:"bankBin" mapstructure:"bank_bin"`
	AccountNumber string `json:"accountNumber" mapstructure:"account_number"`
	AccountName   string `json:"accountName" mapstructure:"account_name"`
	WebhookKey    string `json:"webhookKey" mapstructure:"webhook_key"`

	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSecretKey string `json:"pn_secret" mapstructure:"pn_secret"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
}

type Provider struct {
	cfg *Config

	pn       *pubnub.PubNub
	listener *pubnub.Listener
	txCh     chan *status.Transaction
}

func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg.AccountNumber == "" {
		return nil, fmt.Errorf("vietqr: beneficiary account not configured")
	}

	p := &Provider{cfg: cfg}

	if cfg.PNSubKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
		pnCfg.SubscribeKey = cfg.PNSubKey
		pnCfg.SecretKey = cfg.PNSecretKey

		p.pn = pubnub.NewPubNub(pnCfg)
		p.listener = pubnub.NewListener()
		p.pn.AddListener(p.listener)
		p.pn.Subscribe().Channels([]string{cfg.PNChannel}).Execute()

		go p.processSubscription(ctx)
	}

	return p, nil
}

func (p *Provider) Method() models.PaymentMethod { return models.MethodVietQR }

// CreateReference builds the QR payload for the booking amount. The
// reference rides in the transfer purpose field so the settlement report
// can be matched back to the attempt.
func (p *Provider) CreateReference(_ context.Context, inv gateway.Invoice) (*models.PaymentOption, error) {
	suffix, err := utils.GenerateCode(4)
	if err != nil {
		return nil, err
	}
	reference := fmt.Sprintf("TKT%s%s", strings.ToUpper(inv.BookingID), suffix)

	payload := buildPayload(p.cfg.BankBIN, p.cfg.AccountNumber, inv.Amount.StringFixed(0), reference)

	return &models.PaymentOption{
		Method:      models.MethodVietQR,
		Reference:   reference,
		QRPayload:   payload,
		AccountInfo: fmt.Sprintf("%s / %s (%s)", p.cfg.BankBIN, p.cfg.AccountNumber, p.cfg.AccountName),
	}, nil
}

// SetTransactionChannel directs settled transfers from the bank
// subscription into ch.
func (p *Provider) SetTransactionChannel(ch chan *status.Transaction) {
	p.txCh = ch
}

// VerifyWebhook checks the HMAC digest the bank attaches to webhook
// deliveries against the raw body.
func (p *Provider) VerifyWebhook(body []byte, receivedHMAC string) bool {
	if p.cfg.WebhookKey == "" {
		return false
	}
	return gateway.VerifyHmac256(body, []byte(p.cfg.WebhookKey), receivedHMAC)
}

// notification is the bank's settlement report shape.
type notification struct {
	RefNo         string `json:"refNo"`
	Reference     string `json:"reference"`
	Amount        string `json:"txnAmount"`
	Payer         string `json:"sourceName"`
	AccountNumber string `json:"sourceAccount"`
	Currency      string `json:"sourceCurrency"`
	CreatedAt     string `json:"txnDateTime"`
}

func (n *notification) toDomain() (*status.Transaction, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", n.CreatedAt, time.Local)
	if err != nil {
		ts = time.Now()
	}
	tran := &status.Transaction{
		RefID:         n.Reference,
		Ccy:           n.Currency,
		Payer:         n.Payer,
		AccountNumber: n.AccountNumber,
		CreatedAt:     ts,
	}
	if n.Reference == "" {
		tran.RefID = n.RefNo
	}
	return tran, nil
}

func (p *Provider) processSubscription(ctx context.Context) {
	for {
		select {
		case st := <-p.listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				slog.Info("vietqr: connected to bank notification channel")
			case pubnub.PNReconnectedCategory:
				slog.Info("vietqr: reconnected to bank notification channel")
			case pubnub.PNDisconnectedCategory:
				slog.Warn("vietqr: disconnected from bank notification channel")
			default:
				slog.Debug("vietqr: subscription status", "category", st.Category)
			}

		case message := <-p.listener.Message:
			raw, ok := message.Message.(string)
			if !ok {
				data, err := json.Marshal(message.Message)
				if err != nil {
					slog.Error("vietqr: unreadable bank message", "error", err)
					continue
				}
				raw = string(data)
			}

			var n notification
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				slog.Error("vietqr: decode bank message", "error", err)
				continue
			}
			tran, err := n.toDomain()
			if err != nil {
				slog.Error("vietqr: map bank message", "error", err)
				continue
			}
			if p.txCh != nil {
				p.txCh <- tran
			}

		case <-ctx.Done():
			if p.pn != nil {
				p.pn.Unsubscribe().Channels([]string{p.cfg.PNChannel}).Execute()
			}
			return
		}
	}
}
