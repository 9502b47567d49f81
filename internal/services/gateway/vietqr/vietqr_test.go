package vietqr

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-booking/internal/services/gateway"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), &Config{
		BankBIN:       "970436",
		AccountNumber: "0123456789",
		AccountName:   "TICKET BOOKING JSC",
		WebhookKey:    "whsec_test",
	})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAccount(t *testing.T) {
	_, err := New(context.Background(), &Config{BankBIN: "970436"})
	assert.Error(t, err)
}

func TestProvider_CreateReference(t *testing.T) {
	p := testProvider(t)

	option, err := p.CreateReference(context.Background(), gateway.Invoice{
		BookingID: "bk42x",
		Amount:    decimal.NewFromInt(350000),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(option.Reference, "TKTBK42X"), "reference %s", option.Reference)
	assert.Contains(t, option.QRPayload, option.Reference)
	assert.Contains(t, option.QRPayload, "350000")
	assert.Contains(t, option.AccountInfo, "0123456789")

	// References are unique across calls for the same booking.
	again, err := p.CreateReference(context.Background(), gateway.Invoice{
		BookingID: "bk42x",
		Amount:    decimal.NewFromInt(350000),
	})
	require.NoError(t, err)
	assert.NotEqual(t, option.Reference, again.Reference)
}

func TestProvider_VerifyWebhook(t *testing.T) {
	p := testProvider(t)
	body := []byte(`{"reference":"TKTBK42XAB12","txnAmount":"350000"}`)

	sig := gateway.Hmac256(body, []byte("whsec_test"))
	assert.True(t, p.VerifyWebhook(body, sig))
	assert.False(t, p.VerifyWebhook(body, "deadbeef"))
	assert.False(t, p.VerifyWebhook([]byte(`tampered`), sig))
}

func TestProvider_VerifyWebhook_NoKeyConfigured(t *testing.T) {
	p, err := New(context.Background(), &Config{BankBIN: "970436", AccountNumber: "0123456789"})
	require.NoError(t, err)

	body := []byte(`{}`)
	assert.False(t, p.VerifyWebhook(body, gateway.Hmac256(body, nil)))
}

func TestNotification_ToDomain(t *testing.T) {
	n := &notification{
		RefNo:         "FT2024123456",
		Reference:     "TKTBK42XAB12",
		Amount:        "350000",
		Payer:         "NGUYEN VAN A",
		AccountNumber: "9876543210",
		Currency:      "VND",
		CreatedAt:     "2025-08-25 14:30:00",
	}

	tran, err := n.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "TKTBK42XAB12", tran.RefID)
	assert.Equal(t, "VND", tran.Ccy)
	assert.Equal(t, "NGUYEN VAN A", tran.Payer)
	assert.Equal(t, 2025, tran.CreatedAt.Year())

	// Reports without the purpose reference fall back to the bank ref.
	n.Reference = ""
	tran, err = n.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "FT2024123456", tran.RefID)
}
