package payment

import (
	"context"
	"time"

	"premium-bot/internal/models"
)

// Kind groups gateways by how they settle.
type Kind string

const (
	KindInstant Kind = "instant"
	KindPoll    Kind = "poll"
	KindManual  Kind = "manual"
)

type OutcomeKind int

const (
	// OutcomeSettled: the gateway confirmed payment synchronously.
	OutcomeSettled OutcomeKind = iota
	// OutcomePending: the user must pay at PayURL, then the token is polled.
	OutcomePending
	// OutcomeManualReview: an operator has to approve the submitted proof.
	OutcomeManualReview
	// OutcomeAwaitingCallback: an in-chat invoice was issued and settles via
	// the transport's successful-payment callback.
	OutcomeAwaitingCallback
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSettled:
		return "settled"
	case OutcomePending:
		return "pending"
	case OutcomeManualReview:
		return "manual_review"
	case OutcomeAwaitingCallback:
		return "awaiting_callback"
	default:
		return "unknown"
	}
}

// Transaction is a confirmed settlement. Amount is in minor units.
type Transaction struct {
	UserID    string
	Gateway   string
	Plan      models.PlanKind
	Amount    int64
	Currency  string
	Reference string
	SettledAt time.Time
}

// Invoice is what the chat transport needs to render an in-chat payment.
type Invoice struct {
	Title         string
	Description   string
	Payload       string
	ProviderToken string
	Currency      string
	Amount        int64
}

type Proof struct {
	Kind  models.ProofKind
	Value string
}

type Outcome struct {
	Kind        OutcomeKind
	Transaction *Transaction
	Token       *PendingToken
	Proof       *Proof
	Invoice     *Invoice
}

type InitiateRequest struct {
	UserID string
	ChatID int64
	Plan   models.PlanKind
	Proof  *Proof
}

type Adapter interface {
	Name() string
	Kind() Kind
	Initiate(ctx context.Context, req InitiateRequest) (Outcome, error)
}

type Status int

const (
	StatusPending Status = iota
	StatusSettled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

type StatusResult struct {
	Status Status
	// Raw is the provider's own status word, kept for logs.
	Raw         string
	Transaction *Transaction
}

// StatusChecker is implemented by poll-based gateways. Calls are read-only
// against the provider and may be repeated.
type StatusChecker interface {
	CheckStatus(ctx context.Context, token PendingToken) (StatusResult, error)
}

// SuccessfulPayment is the in-chat payment confirmation as delivered by the
// chat transport.
type SuccessfulPayment struct {
	UserID           string
	ChatID           int64
	Payload          string
	Currency         string
	TotalAmount      int64
	ChargeID         string
	ProviderChargeID string
}

// InstantConfirmer is implemented by gateways whose invoices settle through
// the chat transport.
type InstantConfirmer interface {
	ValidatePreCheckout(chatID int64, payload, currency string, amount int64) (models.PlanKind, error)
	Confirm(p SuccessfulPayment) (*Transaction, error)
}
