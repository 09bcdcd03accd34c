package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/models"
)

func TestCryptomusSign(t *testing.T) {
	body := []byte(`{"uuid":"8b03432e-385b-4670-8d06-064591096795"}`)
	assert.Equal(t, "cc1929ba453caf3b286f5958540f5f64", CryptomusSign(body, "secret-key"))
	assert.Equal(t, CryptomusSign(body, "secret-key"), CryptomusSign(body, "secret-key"))
	assert.NotEqual(t, CryptomusSign(body, "secret-key"), CryptomusSign(body, "other-key"))
}

func TestCryptomusStatusVocabulary(t *testing.T) {
	cases := map[string]Status{
		"paid":                 StatusSettled,
		"Paid":                 StatusSettled,
		"paid_over":            StatusSettled,
		"overpaid":             StatusSettled,
		"created":              StatusPending,
		"check":                StatusPending,
		"confirm_check":        StatusPending,
		"wrong_amount_waiting": StatusPending,
		"cancel":               StatusFailed,
		"fail":                 StatusFailed,
		"wrong_amount":         StatusFailed,
		"refund_paid":          StatusFailed,
	}
	for raw, want := range cases {
		got, err := cryptomusStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := cryptomusStatus("mystery")
	assert.Error(t, err)
}

func TestCryptomusCreatedThenOverpaid(t *testing.T) {
	var status atomic.Value
	status.Store("created")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "merchant-1", r.Header.Get("merchant"))
		assert.Equal(t, CryptomusSign(body, "api-key"), r.Header.Get("sign"))

		switch r.URL.Path {
		case "/payment":
			var req cryptomusCreateRequest
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "6.00", req.Amount)
			assert.NotEmpty(t, req.OrderID)
			assert.Equal(t, 3600, req.Lifetime)
			_, _ = w.Write([]byte(`{"state":0,"result":{"uuid":"pay-1","url":"https://pay.cryptomus.com/pay/pay-1","amount":"6.00","currency":"USD","payment_status":"check"}}`))
		case "/payment/info":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"state": 0,
				"result": map[string]any{
					"uuid": "pay-1", "amount": "6.00", "currency": "USD", "payment_status": status.Load(),
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := newCryptomusGateway(srv.URL, "merchant-1", "api-key", time.Hour)
	ctx := context.Background()

	out, err := g.Initiate(ctx, InitiateRequest{UserID: "9", Plan: models.PlanMonth})
	require.NoError(t, err)
	require.Equal(t, OutcomePending, out.Kind)
	assert.Equal(t, "pay-1", out.Token.Reference)

	res, err := g.CheckStatus(ctx, *out.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	status.Store("overpaid")
	res, err = g.CheckStatus(ctx, *out.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, res.Status)
	assert.Equal(t, models.PlanMonth, res.Transaction.Plan)
	assert.Equal(t, int64(600), res.Transaction.Amount)
}

func TestCryptomusRejectsInvoiceForAnotherPlan(t *testing.T) {
	body := atomic.Value{}
	body.Store(`{"state":0,"result":{"uuid":"pay-2","amount":"1.00","currency":"USD","payment_amount":"6.00","payment_status":"paid"}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	g := newCryptomusGateway(srv.URL, "m", "k", time.Hour)
	tok := PendingToken{UserID: "9", Plan: models.PlanMonth, Reference: "pay-2"}

	// a week-priced invoice never settles a month, whatever the payer sent
	_, err := g.CheckStatus(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	body.Store(`{"state":0,"result":{"uuid":"pay-2","amount":"6.00","currency":"EUR","payment_status":"paid"}}`)
	_, err = g.CheckStatus(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	// underpayment is reported through the status, not the amount
	body.Store(`{"state":0,"result":{"uuid":"pay-2","amount":"6.00","currency":"USD","payment_status":"wrong_amount"}}`)
	res, err := g.CheckStatus(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Transaction)
}

func TestCryptomusStateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":1,"message":"Invalid Sign"}`))
	}))
	defer srv.Close()

	g := newCryptomusGateway(srv.URL, "m", "k", time.Hour)
	_, err := g.Initiate(context.Background(), InitiateRequest{UserID: "9", Plan: models.PlanWeek})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClampLifetime(t *testing.T) {
	assert.Equal(t, 300, clampLifetime(time.Minute))
	assert.Equal(t, 3600, clampLifetime(time.Hour))
	assert.Equal(t, 43200, clampLifetime(48*time.Hour))
}
