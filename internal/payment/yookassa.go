package payment

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const yookassaAPI = "https://api.yookassa.ru/v3"

// YookassaClient talks to the YooKassa v3 payments API.
type YookassaClient struct {
	api *apiClient
}

func NewYookassaClient(shopID, secretKey string) *YookassaClient {
	return newYookassaClient(yookassaAPI, shopID, secretKey)
}

func newYookassaClient(baseURL, shopID, secretKey string) *YookassaClient {
	return &YookassaClient{
		api: newAPIClient("yookassa", baseURL, func(req *http.Request, _ []byte) {
			if req.Method == http.MethodPost {
				req.Header.Set("Idempotence-Key", uuid.New().String())
			}
			req.SetBasicAuth(shopID, secretKey)
		}),
	}
}

func (c *YookassaClient) CreatePayment(ctx context.Context, amount, currency, description, returnURL string, metadata map[string]string) (*yooPayment, error) {
	var p yooPayment
	err := c.api.do(ctx, http.MethodPost, "/payments", yooCreatePaymentRequest{
		Amount:  yooAmount{Value: amount, Currency: currency},
		Capture: true,
		Confirmation: yooConfirmation{
			Type:      "redirect",
			ReturnURL: returnURL,
		},
		Description: description,
		Metadata:    metadata,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *YookassaClient) GetPayment(ctx context.Context, id string) (*yooPayment, error) {
	var p yooPayment
	if err := c.api.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// YookassaGateway sells plans through a YooKassa redirect payment. It is
// polled by the user and additionally nudged by the payment webhook.
type YookassaGateway struct {
	client    *YookassaClient
	prices    PriceList
	returnURL string
	now       func() time.Time
}

func NewYookassaGateway(client *YookassaClient, prices PriceList, returnURL string) *YookassaGateway {
	return &YookassaGateway{
		client:    client,
		prices:    prices,
		returnURL: returnURL,
		now:       time.Now,
	}
}

func (g *YookassaGateway) Name() string { return "yookassa" }
func (g *YookassaGateway) Kind() Kind   { return KindPoll }

func (g *YookassaGateway) Initiate(ctx context.Context, req InitiateRequest) (Outcome, error) {
	price, err := g.prices.For(req.Plan)
	if err != nil {
		return Outcome{}, err
	}

	p, err := g.client.CreatePayment(ctx, FormatMajor(price.Amount), price.Currency, req.Plan.Title(), g.returnURL, map[string]string{
		"user_id": req.UserID,
		"plan":    string(req.Plan),
	})
	if err != nil {
		return Outcome{}, err
	}
	if p.ID == "" || p.Confirmation.ConfirmationURL == "" {
		return Outcome{}, invalidResponse(g.Name(), "payment without id or confirmation url")
	}

	return Outcome{
		Kind: OutcomePending,
		Token: &PendingToken{
			UserID:    req.UserID,
			Plan:      req.Plan,
			Gateway:   g.Name(),
			Reference: p.ID,
			PayURL:    p.Confirmation.ConfirmationURL,
			CreatedAt: g.now().UTC(),
		},
	}, nil
}

func (g *YookassaGateway) CheckStatus(ctx context.Context, tok PendingToken) (StatusResult, error) {
	p, err := g.client.GetPayment(ctx, tok.Reference)
	if err != nil {
		return StatusResult{}, err
	}
	if p.ID != tok.Reference {
		return StatusResult{}, invalidResponse(g.Name(), "asked for %s, got %s", tok.Reference, p.ID)
	}
	if owner := p.Metadata["user_id"]; owner != "" && owner != tok.UserID {
		return StatusResult{}, invalidResponse(g.Name(), "payment %s belongs to another user", p.ID)
	}

	result := StatusResult{Raw: p.Status}
	switch strings.ToLower(p.Status) {
	case "pending", "waiting_for_capture":
		result.Status = StatusPending
	case "canceled":
		result.Status = StatusFailed
	case "succeeded":
		if !p.Paid {
			return StatusResult{}, invalidResponse(g.Name(), "succeeded payment %s not marked paid", p.ID)
		}
		tx, err := settledTransaction(g.Name(), g.prices, tok, p.Amount.Value, p.Amount.Currency, g.now())
		if err != nil {
			return StatusResult{}, err
		}
		result.Status = StatusSettled
		result.Transaction = tx
	default:
		return StatusResult{}, invalidResponse(g.Name(), "%v", errUnknownStatus(p.Status))
	}
	return result, nil
}

