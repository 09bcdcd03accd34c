package payment

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const cryptomusAPI = "https://api.cryptomus.com/v1"

// CryptomusSign computes the request signature: md5 over the base64 of the
// raw JSON body followed by the API key, hex encoded.
func CryptomusSign(body []byte, apiKey string) string {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + apiKey))
	return hex.EncodeToString(sum[:])
}

type cryptomusResponse struct {
	State   int              `json:"state"`
	Message string           `json:"message,omitempty"`
	Result  *cryptomusResult `json:"result"`
}

type cryptomusResult struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

type cryptomusCreateRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	Lifetime int    `json:"lifetime"`
}

type cryptomusInfoRequest struct {
	UUID string `json:"uuid"`
}

// CryptomusGateway invoices through the signed Cryptomus API and is polled
// for settlement.
type CryptomusGateway struct {
	client   *apiClient
	prices   PriceList
	lifetime time.Duration
	now      func() time.Time
}

func NewCryptomusGateway(merchant, apiKey string, ttl time.Duration) *CryptomusGateway {
	return newCryptomusGateway(cryptomusAPI, merchant, apiKey, ttl)
}

func newCryptomusGateway(baseURL, merchant, apiKey string, ttl time.Duration) *CryptomusGateway {
	return &CryptomusGateway{
		client: newAPIClient("cryptomus", baseURL, func(req *http.Request, body []byte) {
			req.Header.Set("merchant", merchant)
			req.Header.Set("sign", CryptomusSign(body, apiKey))
		}),
		prices:   CryptoPrices,
		lifetime: ttl,
		now:      time.Now,
	}
}

func (g *CryptomusGateway) Name() string { return "cryptomus" }
func (g *CryptomusGateway) Kind() Kind   { return KindPoll }

func (g *CryptomusGateway) Initiate(ctx context.Context, req InitiateRequest) (Outcome, error) {
	price, err := g.prices.For(req.Plan)
	if err != nil {
		return Outcome{}, err
	}

	var resp cryptomusResponse
	err = g.client.do(ctx, http.MethodPost, "/payment", cryptomusCreateRequest{
		Amount:   FormatMajor(price.Amount),
		Currency: price.Currency,
		OrderID:  uuid.NewString(),
		Lifetime: clampLifetime(g.lifetime),
	}, &resp)
	if err != nil {
		return Outcome{}, err
	}
	res, err := g.result(resp)
	if err != nil {
		return Outcome{}, err
	}
	if res.UUID == "" || res.URL == "" {
		return Outcome{}, invalidResponse(g.Name(), "payment without uuid or url")
	}

	return Outcome{
		Kind: OutcomePending,
		Token: &PendingToken{
			UserID:    req.UserID,
			Plan:      req.Plan,
			Gateway:   g.Name(),
			Reference: res.UUID,
			PayURL:    res.URL,
			CreatedAt: g.now().UTC(),
		},
	}, nil
}

func (g *CryptomusGateway) CheckStatus(ctx context.Context, tok PendingToken) (StatusResult, error) {
	var resp cryptomusResponse
	if err := g.client.do(ctx, http.MethodPost, "/payment/info", cryptomusInfoRequest{UUID: tok.Reference}, &resp); err != nil {
		return StatusResult{}, err
	}
	res, err := g.result(resp)
	if err != nil {
		return StatusResult{}, err
	}

	raw := res.PaymentStatus
	if raw == "" {
		raw = res.Status
	}
	status, err := cryptomusStatus(raw)
	if err != nil {
		return StatusResult{}, invalidResponse(g.Name(), "%v", err)
	}

	result := StatusResult{Status: status, Raw: raw}
	if status == StatusSettled {
		tx, err := settledTransaction(g.Name(), g.prices, tok, res.Amount, res.Currency, g.now())
		if err != nil {
			return StatusResult{}, err
		}
		result.Transaction = tx
	}
	return result, nil
}

func (g *CryptomusGateway) result(resp cryptomusResponse) (*cryptomusResult, error) {
	if resp.State != 0 {
		return nil, invalidResponse(g.Name(), "state %d: %s", resp.State, resp.Message)
	}
	if resp.Result == nil {
		return nil, invalidResponse(g.Name(), "missing result")
	}
	return resp.Result, nil
}

func cryptomusStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "paid", "paid_over", "overpaid":
		return StatusSettled, nil
	case "check", "process", "created", "confirm_check", "wrong_amount_waiting":
		return StatusPending, nil
	case "fail", "cancel", "system_fail", "wrong_amount", "expired", "locked":
		return StatusFailed, nil
	}
	if strings.HasPrefix(s, "refund") {
		return StatusFailed, nil
	}
	return StatusPending, errUnknownStatus(raw)
}

// Cryptomus accepts invoice lifetimes between 5 minutes and 12 hours.
func clampLifetime(d time.Duration) int {
	secs := int(d.Seconds())
	if secs < 300 {
		return 300
	}
	if secs > 43200 {
		return 43200
	}
	return secs
}
