package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"premium-bot/internal/models"
)

const payloadPrefix = "premium"

// InvoicePayload carries plan and gateway through the in-chat payment so the
// callback never has to guess the plan from the amount.
func InvoicePayload(plan models.PlanKind, gateway string) string {
	return fmt.Sprintf("%s_%s_%s", payloadPrefix, plan, gateway)
}

func ParseInvoicePayload(payload string) (models.PlanKind, string, error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return "", "", validationError("malformed invoice payload %q", payload)
	}
	plan, err := models.ParsePlan(parts[1])
	if err != nil {
		return "", "", validationError("invoice payload: %v", err)
	}
	if parts[2] == "" {
		return "", "", validationError("invoice payload %q has no gateway", payload)
	}
	return plan, parts[2], nil
}

// InvoiceGateway issues in-chat invoices that settle through the transport's
// successful-payment callback.
type InvoiceGateway struct {
	name          string
	providerToken string
	prices        PriceList
	currencyFor   func(chatID int64) string
	now           func() time.Time
}

// NewStarsGateway sells plans for Telegram Stars. No provider token is used.
func NewStarsGateway() *InvoiceGateway {
	return &InvoiceGateway{
		name:        "stars",
		prices:      StarsPrices,
		currencyFor: func(int64) string { return "XTR" },
		now:         time.Now,
	}
}

// NewCardGateway sells plans through a card processor connected to the bot.
func NewCardGateway(providerToken string) *InvoiceGateway {
	return &InvoiceGateway{
		name:          "tranzzo",
		providerToken: providerToken,
		prices:        CardPrices,
		currencyFor:   cardCurrency,
		now:           time.Now,
	}
}

func cardCurrency(chatID int64) string {
	if strings.HasPrefix(strconv.FormatInt(chatID, 10), "234") {
		return "EUR"
	}
	return "USD"
}

func (g *InvoiceGateway) Name() string { return g.name }
func (g *InvoiceGateway) Kind() Kind   { return KindInstant }

func (g *InvoiceGateway) Initiate(_ context.Context, req InitiateRequest) (Outcome, error) {
	price, err := g.prices.For(req.Plan)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Kind: OutcomeAwaitingCallback,
		Invoice: &Invoice{
			Title:         req.Plan.Title(),
			Description:   fmt.Sprintf("Premium access for %d days", int(req.Plan.Duration().Hours()/24)),
			Payload:       InvoicePayload(req.Plan, g.name),
			ProviderToken: g.providerToken,
			Currency:      g.currencyFor(req.ChatID),
			Amount:        price.Amount,
		},
	}, nil
}

// ValidatePreCheckout checks an invoice before the transport charges it.
func (g *InvoiceGateway) ValidatePreCheckout(chatID int64, payload, currency string, amount int64) (models.PlanKind, error) {
	plan, gateway, err := ParseInvoicePayload(payload)
	if err != nil {
		return "", err
	}
	if gateway != g.name {
		return "", validationError("invoice for %q presented to %q", gateway, g.name)
	}
	price, err := g.prices.For(plan)
	if err != nil {
		return "", err
	}
	if amount != price.Amount {
		return "", validationError("amount %d does not match %s price %d", amount, plan, price.Amount)
	}
	if want := g.currencyFor(chatID); !strings.EqualFold(currency, want) {
		return "", validationError("currency %q, expected %q", currency, want)
	}
	return plan, nil
}

func (g *InvoiceGateway) Confirm(p SuccessfulPayment) (*Transaction, error) {
	plan, err := g.ValidatePreCheckout(p.ChatID, p.Payload, p.Currency, p.TotalAmount)
	if err != nil {
		return nil, err
	}
	ref := p.ChargeID
	if ref == "" {
		ref = p.ProviderChargeID
	}
	if ref == "" {
		return nil, invalidResponse(g.name, "successful payment without charge id")
	}
	return &Transaction{
		UserID:    p.UserID,
		Gateway:   g.name,
		Plan:      plan,
		Amount:    p.TotalAmount,
		Currency:  strings.ToUpper(p.Currency),
		Reference: ref,
		SettledAt: g.now().UTC(),
	}, nil
}
