package payment

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const cryptoBotAPI = "https://pay.crypt.bot/api"

type cryptoBotResponse[T any] struct {
	OK     bool `json:"ok"`
	Result T    `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error,omitempty"`
}

type cryptoBotInvoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Fiat          string `json:"fiat"`
	BotInvoiceURL string `json:"bot_invoice_url"`
	Payload       string `json:"payload"`
}

type cryptoBotCreateRequest struct {
	CurrencyType string `json:"currency_type"`
	Fiat         string `json:"fiat"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Payload      string `json:"payload"`
	ExpiresIn    int    `json:"expires_in"`
}

// CryptoBotGateway invoices through the Crypto Pay API and is polled for
// settlement.
type CryptoBotGateway struct {
	client    *apiClient
	prices    PriceList
	expiresIn time.Duration
	now       func() time.Time
}

func NewCryptoBotGateway(token string, ttl time.Duration) *CryptoBotGateway {
	return newCryptoBotGateway(cryptoBotAPI, token, ttl)
}

func newCryptoBotGateway(baseURL, token string, ttl time.Duration) *CryptoBotGateway {
	return &CryptoBotGateway{
		client: newAPIClient("cryptobot", baseURL, func(req *http.Request, _ []byte) {
			req.Header.Set("Crypto-Pay-API-Token", token)
		}),
		prices:    CryptoPrices,
		expiresIn: ttl,
		now:       time.Now,
	}
}

func (g *CryptoBotGateway) Name() string { return "cryptobot" }
func (g *CryptoBotGateway) Kind() Kind   { return KindPoll }

func (g *CryptoBotGateway) Initiate(ctx context.Context, req InitiateRequest) (Outcome, error) {
	price, err := g.prices.For(req.Plan)
	if err != nil {
		return Outcome{}, err
	}

	var resp cryptoBotResponse[cryptoBotInvoice]
	err = g.client.do(ctx, http.MethodPost, "/createInvoice", cryptoBotCreateRequest{
		CurrencyType: "fiat",
		Fiat:         price.Currency,
		Amount:       FormatMajor(price.Amount),
		Description:  req.Plan.Title(),
		Payload:      req.UserID + ":" + string(req.Plan),
		ExpiresIn:    int(g.expiresIn.Seconds()),
	}, &resp)
	if err != nil {
		return Outcome{}, err
	}
	if err := resp.check(); err != nil {
		return Outcome{}, err
	}
	inv := resp.Result
	if inv.InvoiceID == 0 || inv.BotInvoiceURL == "" {
		return Outcome{}, invalidResponse(g.Name(), "invoice without id or url")
	}

	now := g.now().UTC()
	return Outcome{
		Kind: OutcomePending,
		Token: &PendingToken{
			UserID:    req.UserID,
			Plan:      req.Plan,
			Gateway:   g.Name(),
			Reference: strconv.FormatInt(inv.InvoiceID, 10),
			PayURL:    inv.BotInvoiceURL,
			CreatedAt: now,
		},
	}, nil
}

func (g *CryptoBotGateway) CheckStatus(ctx context.Context, tok PendingToken) (StatusResult, error) {
	var resp cryptoBotResponse[struct {
		Items []cryptoBotInvoice `json:"items"`
	}]
	endpoint := "/getInvoices?invoice_ids=" + url.QueryEscape(tok.Reference)
	if err := g.client.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return StatusResult{}, err
	}
	if err := resp.check(); err != nil {
		return StatusResult{}, err
	}
	if len(resp.Result.Items) != 1 {
		return StatusResult{}, invalidResponse(g.Name(), "expected one invoice, got %d", len(resp.Result.Items))
	}
	inv := resp.Result.Items[0]

	result := StatusResult{Raw: inv.Status}
	switch strings.ToLower(inv.Status) {
	case "active":
		result.Status = StatusPending
	case "expired":
		result.Status = StatusFailed
	case "paid":
		tx, err := settledTransaction(g.Name(), g.prices, tok, inv.Amount, inv.Fiat, g.now())
		if err != nil {
			return StatusResult{}, err
		}
		result.Status = StatusSettled
		result.Transaction = tx
	default:
		return StatusResult{}, invalidResponse(g.Name(), "unknown invoice status %q", inv.Status)
	}
	return result, nil
}

func (r cryptoBotResponse[T]) check() error {
	if r.OK {
		return nil
	}
	if r.Error != nil {
		return invalidResponse("cryptobot", "api error %d %s", r.Error.Code, r.Error.Name)
	}
	return invalidResponse("cryptobot", "response not ok")
}

// settledTransaction builds the ledger entry for a polled settlement. The
// providers report the invoice amount, not what the payer sent; their paid
// status already certifies full payment. The invoice itself must carry
// exactly the plan's price, otherwise it was not issued for this plan.
func settledTransaction(gateway string, prices PriceList, tok PendingToken, amount, currency string, now time.Time) (*Transaction, error) {
	price, err := prices.For(tok.Plan)
	if err != nil {
		return nil, err
	}
	minor, err := ParseMinor(amount)
	if err != nil {
		return nil, invalidResponse(gateway, "amount: %v", err)
	}
	if minor != price.Amount {
		return nil, invalidResponse(gateway, "invoice amount %s does not match %s price %s", amount, tok.Plan, FormatMajor(price.Amount))
	}
	if currency == "" {
		currency = price.Currency
	}
	if !strings.EqualFold(currency, price.Currency) {
		return nil, invalidResponse(gateway, "invoice currency %s does not match %s price currency %s", currency, tok.Plan, price.Currency)
	}
	return &Transaction{
		UserID:    tok.UserID,
		Gateway:   gateway,
		Plan:      tok.Plan,
		Amount:    minor,
		Currency:  price.Currency,
		Reference: tok.Reference,
		SettledAt: now.UTC(),
	}, nil
}
