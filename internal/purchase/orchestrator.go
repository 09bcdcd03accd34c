package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"premium-bot/internal/metrics"
	"premium-bot/internal/models"
	"premium-bot/internal/payment"
	"premium-bot/internal/repository"
	"premium-bot/internal/utils"
)

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewDecided  = errors.New("review already decided")
	ErrTokenOwnership = errors.New("pending purchase belongs to another user")
)

type Entitlements interface {
	Grant(ctx context.Context, userID string, plan models.PlanKind) (*models.Entitlement, error)
	GrantLifetime(ctx context.Context, userID string, plan models.PlanKind) (*models.Entitlement, error)
}

type Ledger interface {
	Append(ctx context.Context, tx *models.PurchaseTransaction) error
}

type Reviews interface {
	Create(ctx context.Context, review *models.ManualReview) error
	Get(ctx context.Context, id uint) (*models.ManualReview, error)
	Decide(ctx context.Context, id uint, status models.ReviewStatus, plan models.PlanKind, at time.Time) (bool, error)
	Reopen(ctx context.Context, id uint, plan models.PlanKind) error
}

type Pending interface {
	Save(ctx context.Context, tok payment.PendingToken) (*payment.PendingToken, error)
	Get(ctx context.Context, token string) (*payment.PendingToken, error)
	FindByReference(ctx context.Context, gateway, reference string) (*payment.PendingToken, error)
	Delete(ctx context.Context, tok payment.PendingToken) error
	TTL() time.Duration
}

type Guard interface {
	Claim(ctx context.Context, gateway, reference string) (bool, error)
	Release(ctx context.Context, gateway, reference string) error
}

type Gateways interface {
	Get(name string) (payment.Adapter, error)
	StatusChecker(name string) (payment.StatusChecker, error)
	Confirmer(name string) (payment.InstantConfirmer, error)
}

// Notifier delivers orchestrator events to users and the operator.
type Notifier interface {
	NotifyGranted(ctx context.Context, ent *models.Entitlement, tx *payment.Transaction) error
	NotifyRejected(ctx context.Context, review *models.ManualReview) error
	RequestReview(ctx context.Context, review *models.ManualReview) error
}

type State string

const (
	StateGranted         State = "granted"
	StatePending         State = "pending"
	StateAwaitingReview  State = "awaiting_review"
	StateAwaitingPayment State = "awaiting_payment"
	StateFailed          State = "failed"
	StateRejected        State = "rejected"
)

type Result struct {
	State       State
	Entitlement *models.Entitlement
	Token       *payment.PendingToken
	Replaced    *payment.PendingToken
	Review      *models.ManualReview
	Invoice     *payment.Invoice
	// Duplicate is set when a settlement was already granted earlier.
	Duplicate bool
}

type StartRequest struct {
	UserID  string
	ChatID  int64
	Gateway string
	Plan    models.PlanKind
	Proof   *payment.Proof
}

type Deps struct {
	Entitlements Entitlements
	Ledger       Ledger
	Reviews      Reviews
	Pending      Pending
	Guard        Guard
	Gateways     Gateways
	Notifier     Notifier
	Log          *zap.Logger
}

// Orchestrator drives purchases from plan selection to a granted entitlement.
type Orchestrator struct {
	ents     Entitlements
	ledger   Ledger
	reviews  Reviews
	pending  Pending
	guard    Guard
	gateways Gateways
	notifier Notifier
	locks    *utils.KeyedMutex
	log      *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		ents:     d.Entitlements,
		ledger:   d.Ledger,
		reviews:  d.Reviews,
		pending:  d.Pending,
		guard:    d.Guard,
		gateways: d.Gateways,
		notifier: d.Notifier,
		locks:    utils.NewKeyedMutex(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins a purchase with the chosen gateway.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (Result, error) {
	adapter, err := o.gateways.Get(req.Gateway)
	if err != nil {
		return Result{}, err
	}
	if adapter.Kind() != payment.KindManual && !req.Plan.Valid() {
		return Result{}, fmt.Errorf("%w: unknown plan %q", payment.ErrValidation, req.Plan)
	}

	out, err := adapter.Initiate(ctx, payment.InitiateRequest{
		UserID: req.UserID,
		ChatID: req.ChatID,
		Plan:   req.Plan,
		Proof:  req.Proof,
	})
	if err != nil {
		o.gatewayFailure(adapter.Name(), req.UserID, err)
		return Result{}, err
	}
	metrics.PurchasesTotal.WithLabelValues(adapter.Name(), out.Kind.String()).Inc()

	switch out.Kind {
	case payment.OutcomeSettled:
		return o.settle(ctx, out.Transaction)
	case payment.OutcomePending:
		return o.track(ctx, out.Token)
	case payment.OutcomeManualReview:
		return o.queueReview(ctx, req, adapter.Name(), out.Proof)
	case payment.OutcomeAwaitingCallback:
		return Result{State: StateAwaitingPayment, Invoice: out.Invoice}, nil
	default:
		return Result{}, fmt.Errorf("gateway %s returned unknown outcome %d", adapter.Name(), out.Kind)
	}
}

func (o *Orchestrator) track(ctx context.Context, tok *payment.PendingToken) (Result, error) {
	if tok == nil {
		return Result{}, fmt.Errorf("%w: pending outcome without token", payment.ErrInvalidResponse)
	}
	tok.Token = uuid.NewString()
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = o.now()
	}
	tok.ExpiresAt = tok.CreatedAt.Add(o.pending.TTL())

	replaced, err := o.pending.Save(ctx, *tok)
	if err != nil {
		return Result{}, err
	}
	if replaced != nil {
		o.log.Info("pending purchase replaced",
			zap.String("user_id", tok.UserID),
			zap.String("old_gateway", replaced.Gateway),
			zap.String("old_reference", replaced.Reference),
		)
	}
	o.log.Info("pending purchase created",
		zap.String("user_id", tok.UserID),
		zap.String("gateway", tok.Gateway),
		zap.String("reference", tok.Reference),
		zap.String("plan", string(tok.Plan)),
	)
	return Result{State: StatePending, Token: tok, Replaced: replaced}, nil
}

func (o *Orchestrator) queueReview(ctx context.Context, req StartRequest, gateway string, proof *payment.Proof) (Result, error) {
	if proof == nil {
		return Result{}, fmt.Errorf("%w: manual outcome without proof", payment.ErrInvalidResponse)
	}
	review := &models.ManualReview{
		UserID:    req.UserID,
		Gateway:   gateway,
		PlanKind:  req.Plan,
		ProofKind: proof.Kind,
		Proof:     proof.Value,
		Status:    models.ReviewPending,
	}
	if err := o.reviews.Create(ctx, review); err != nil {
		return Result{}, err
	}
	if err := o.notifier.RequestReview(ctx, review); err != nil {
		o.log.Error("failed to send review request", zap.Uint("review_id", review.ID), zap.Error(err))
	}
	o.log.Info("manual review queued", zap.Uint("review_id", review.ID), zap.String("user_id", review.UserID), zap.String("gateway", gateway))
	return Result{State: StateAwaitingReview, Review: review}, nil
}

// PreCheckout validates an in-chat invoice before it is charged.
func (o *Orchestrator) PreCheckout(chatID int64, payload, currency string, amount int64) error {
	_, gateway, err := payment.ParseInvoicePayload(payload)
	if err != nil {
		return err
	}
	c, err := o.gateways.Confirmer(gateway)
	if err != nil {
		return err
	}
	_, err = c.ValidatePreCheckout(chatID, payload, currency, amount)
	return err
}

// ConfirmCallback settles an in-chat payment reported by the transport.
func (o *Orchestrator) ConfirmCallback(ctx context.Context, p payment.SuccessfulPayment) (Result, error) {
	_, gateway, err := payment.ParseInvoicePayload(p.Payload)
	if err != nil {
		return Result{}, err
	}
	c, err := o.gateways.Confirmer(gateway)
	if err != nil {
		return Result{}, err
	}
	tx, err := c.Confirm(p)
	if err != nil {
		o.gatewayFailure(gateway, p.UserID, err)
		return Result{}, err
	}
	return o.settle(ctx, tx)
}

// CheckStatus polls the gateway for the user's pending purchase. No lock is
// held while the gateway call is in flight.
func (o *Orchestrator) CheckStatus(ctx context.Context, userID, token string) (Result, error) {
	tok, err := o.pending.Get(ctx, token)
	if err != nil {
		return Result{}, err
	}
	if tok.UserID != userID {
		return Result{}, ErrTokenOwnership
	}
	return o.poll(ctx, tok)
}

// SettleByReference re-checks a pending purchase located by the provider's
// own reference, as announced by a webhook.
func (o *Orchestrator) SettleByReference(ctx context.Context, gateway, reference string) (Result, error) {
	tok, err := o.pending.FindByReference(ctx, gateway, reference)
	if err != nil {
		return Result{}, err
	}
	res, err := o.poll(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	if res.State == StatePending {
		o.log.Info("webhook arrived before settlement", zap.String("gateway", gateway), zap.String("reference", reference))
	}
	return res, nil
}

func (o *Orchestrator) poll(ctx context.Context, tok *payment.PendingToken) (Result, error) {
	checker, err := o.gateways.StatusChecker(tok.Gateway)
	if err != nil {
		return Result{}, err
	}

	status, err := checker.CheckStatus(ctx, *tok)
	if err != nil {
		o.gatewayFailure(tok.Gateway, tok.UserID, err)
		return Result{}, err
	}

	o.log.Debug("pending purchase polled",
		zap.String("gateway", tok.Gateway),
		zap.String("reference", tok.Reference),
		zap.String("status", status.Raw),
	)

	switch status.Status {
	case payment.StatusSettled:
		if status.Transaction == nil {
			return Result{}, fmt.Errorf("%w: settled without transaction", payment.ErrInvalidResponse)
		}
		res, err := o.settle(ctx, status.Transaction)
		if err != nil {
			return Result{}, err
		}
		o.forget(ctx, *tok)
		res.Token = tok
		return res, nil
	case payment.StatusFailed:
		o.forget(ctx, *tok)
		metrics.PurchasesTotal.WithLabelValues(tok.Gateway, "failed").Inc()
		return Result{State: StateFailed, Token: tok}, nil
	default:
		// The token is kept on lapse: the invoice may still be paid and
		// then settle through a later check or webhook.
		if tok.Expired(o.now()) {
			return Result{State: StateFailed, Token: tok}, nil
		}
		return Result{State: StatePending, Token: tok}, nil
	}
}

func (o *Orchestrator) forget(ctx context.Context, tok payment.PendingToken) {
	if err := o.pending.Delete(ctx, tok); err != nil {
		o.log.Warn("failed to drop pending purchase", zap.String("token", tok.Token), zap.Error(err))
	}
}

// settle grants tx at most once per gateway reference.
func (o *Orchestrator) settle(ctx context.Context, tx *payment.Transaction) (Result, error) {
	claimed, err := o.guard.Claim(ctx, tx.Gateway, tx.Reference)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		o.log.Info("settlement already processed", zap.String("gateway", tx.Gateway), zap.String("reference", tx.Reference))
		return Result{State: StateGranted, Duplicate: true}, nil
	}

	ent, err := o.ents.Grant(ctx, tx.UserID, tx.Plan)
	if err != nil {
		if rerr := o.guard.Release(ctx, tx.Gateway, tx.Reference); rerr != nil {
			o.log.Error("failed to release settlement claim", zap.String("reference", tx.Reference), zap.Error(rerr))
		}
		return Result{}, err
	}

	o.record(ctx, tx)
	metrics.GrantsTotal.WithLabelValues(tx.Gateway).Inc()

	if err := o.notifier.NotifyGranted(ctx, ent, tx); err != nil {
		o.log.Error("failed to notify grant", zap.String("user_id", tx.UserID), zap.Error(err))
	}
	return Result{State: StateGranted, Entitlement: ent}, nil
}

func (o *Orchestrator) record(ctx context.Context, tx *payment.Transaction) {
	err := o.ledger.Append(ctx, &models.PurchaseTransaction{
		UserID:           tx.UserID,
		Gateway:          tx.Gateway,
		PlanKind:         tx.Plan,
		Amount:           tx.Amount,
		Currency:         tx.Currency,
		GatewayReference: tx.Reference,
		CreatedAt:        tx.SettledAt,
	})
	if err != nil {
		o.log.Error("failed to record purchase transaction",
			zap.String("user_id", tx.UserID),
			zap.String("gateway", tx.Gateway),
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
	}
}

// Approve grants one plan duration for a pending review. The operator picks
// the plan, it does not have to match what the user claimed. The review is
// decided before the grant and reopened if the grant fails.
func (o *Orchestrator) Approve(ctx context.Context, reviewID uint, plan models.PlanKind) (Result, error) {
	if !plan.Valid() {
		return Result{}, fmt.Errorf("%w: unknown plan %q", payment.ErrValidation, plan)
	}
	unlock := o.locks.Lock(reviewKey(reviewID))
	defer unlock()

	review, err := o.pendingReview(ctx, reviewID)
	if err != nil {
		return Result{}, err
	}

	decided, err := o.reviews.Decide(ctx, reviewID, models.ReviewApproved, plan, o.now())
	if err != nil {
		return Result{}, err
	}
	if !decided {
		return Result{}, ErrReviewDecided
	}
	ent, err := o.ents.Grant(ctx, review.UserID, plan)
	if err != nil {
		if rerr := o.reviews.Reopen(ctx, reviewID, review.PlanKind); rerr != nil {
			o.log.Error("failed to reopen review after grant failure", zap.Uint("review_id", reviewID), zap.Error(rerr))
		}
		return Result{}, err
	}
	review.Status = models.ReviewApproved
	review.PlanKind = plan

	tx := &payment.Transaction{
		UserID:    review.UserID,
		Gateway:   review.Gateway,
		Plan:      plan,
		Reference: reviewKey(reviewID),
		SettledAt: o.now(),
	}
	o.record(ctx, tx)
	metrics.GrantsTotal.WithLabelValues(review.Gateway).Inc()
	if err := o.notifier.NotifyGranted(ctx, ent, tx); err != nil {
		o.log.Error("failed to notify grant", zap.String("user_id", review.UserID), zap.Error(err))
	}

	o.log.Info("manual review approved", zap.Uint("review_id", reviewID), zap.String("plan", string(plan)))
	return Result{State: StateGranted, Entitlement: ent, Review: review}, nil
}

// Reject closes a pending review without touching the user's entitlement.
func (o *Orchestrator) Reject(ctx context.Context, reviewID uint) (Result, error) {
	unlock := o.locks.Lock(reviewKey(reviewID))
	defer unlock()

	review, err := o.pendingReview(ctx, reviewID)
	if err != nil {
		return Result{}, err
	}
	decided, err := o.reviews.Decide(ctx, reviewID, models.ReviewRejected, "", o.now())
	if err != nil {
		return Result{}, err
	}
	if !decided {
		return Result{}, ErrReviewDecided
	}
	review.Status = models.ReviewRejected

	if err := o.notifier.NotifyRejected(ctx, review); err != nil {
		o.log.Error("failed to notify rejection", zap.String("user_id", review.UserID), zap.Error(err))
	}
	o.log.Info("manual review rejected", zap.Uint("review_id", reviewID))
	return Result{State: StateRejected, Review: review}, nil
}

func (o *Orchestrator) pendingReview(ctx context.Context, id uint) (*models.ManualReview, error) {
	review, err := o.reviews.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	if review.Status != models.ReviewPending {
		return nil, ErrReviewDecided
	}
	return review, nil
}

// GrantDirect is the operator override: a grant with no payment behind it.
// A lifetime grant never expires.
func (o *Orchestrator) GrantDirect(ctx context.Context, userID string, plan models.PlanKind, lifetime bool) (Result, error) {
	var (
		ent *models.Entitlement
		err error
	)
	if lifetime {
		ent, err = o.ents.GrantLifetime(ctx, userID, plan)
	} else {
		ent, err = o.ents.Grant(ctx, userID, plan)
	}
	if err != nil {
		return Result{}, err
	}

	tx := &payment.Transaction{
		UserID:    userID,
		Gateway:   "operator",
		Plan:      plan,
		Reference: "operator:" + strconv.FormatInt(o.now().UnixNano(), 10),
		SettledAt: o.now(),
	}
	o.record(ctx, tx)
	metrics.GrantsTotal.WithLabelValues(tx.Gateway).Inc()
	if err := o.notifier.NotifyGranted(ctx, ent, tx); err != nil {
		o.log.Error("failed to notify grant", zap.String("user_id", userID), zap.Error(err))
	}
	return Result{State: StateGranted, Entitlement: ent}, nil
}

func (o *Orchestrator) gatewayFailure(gateway, userID string, err error) {
	kind := payment.ErrorKind(err)
	metrics.GatewayErrorsTotal.WithLabelValues(gateway, kind).Inc()
	if kind == "validation" {
		o.log.Info("payment rejected", zap.String("gateway", gateway), zap.String("user_id", userID), zap.Error(err))
		return
	}
	o.log.Error("gateway call failed", zap.String("gateway", gateway), zap.String("user_id", userID), zap.Error(err))
}

func reviewKey(id uint) string {
	return "review:" + strconv.FormatUint(uint64(id), 10)
}
