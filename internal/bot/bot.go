package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"go.uber.org/zap"

	"premium-bot/internal/entitlement"
	"premium-bot/internal/models"
	"premium-bot/internal/payment"
	"premium-bot/internal/purchase"
)

type Purchases interface {
	Start(ctx context.Context, req purchase.StartRequest) (purchase.Result, error)
	PreCheckout(chatID int64, payload, currency string, amount int64) error
	ConfirmCallback(ctx context.Context, p payment.SuccessfulPayment) (purchase.Result, error)
	CheckStatus(ctx context.Context, userID, token string) (purchase.Result, error)
	Approve(ctx context.Context, reviewID uint, plan models.PlanKind) (purchase.Result, error)
	Reject(ctx context.Context, reviewID uint) (purchase.Result, error)
	GrantDirect(ctx context.Context, userID string, plan models.PlanKind, lifetime bool) (purchase.Result, error)
}

type Entitlements interface {
	IsEntitled(ctx context.Context, userID string) (bool, error)
	Remaining(ctx context.Context, userID string) (entitlement.Remaining, error)
}

type Support interface {
	Open(ctx context.Context, userID string) (*models.Conversation, bool, error)
	PostUserMessage(ctx context.Context, userID, text string) (*models.Message, error)
	PostOperatorReply(ctx context.Context, replyToMessageID int, text string) (*models.Conversation, error)
	CloseForUser(ctx context.Context, userID string) (*models.Conversation, error)
	Transcript(ctx context.Context, conversationID uint) ([]models.Message, error)
}

// Links registers redirect payment links that users later submit as proof.
type Links interface {
	Register(ctx context.Context, link *models.PaymentLink) error
}

type History interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.PurchaseTransaction, error)
}

type Gateways interface {
	Names() []string
	Get(name string) (payment.Adapter, error)
}

type Deps struct {
	Purchases    Purchases
	Entitlements Entitlements
	Support      Support
	Gateways     Gateways
	Links        Links
	History      History
	AdminID      int64
	ChannelURL   string
	Log          *zap.Logger
}

type Bot struct {
	Instance *telego.Bot

	purchases  Purchases
	ents       Entitlements
	support    Support
	gateways   Gateways
	links      Links
	history    History
	adminID    int64
	channelURL string
	log        *zap.Logger

	// UserStates holds the manual gateway a user is expected to send proof for.
	UserStates map[int64]string
	statesMu   sync.RWMutex
}

// NewAPI creates the Telegram client shared by the bot and the notifier.
func NewAPI(token string) (*telego.Bot, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return api, nil
}

func New(api *telego.Bot, d Deps) *Bot {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		Instance:   api,
		purchases:  d.Purchases,
		ents:       d.Entitlements,
		support:    d.Support,
		gateways:   d.Gateways,
		links:      d.Links,
		history:    d.History,
		adminID:    d.AdminID,
		channelURL: d.ChannelURL,
		log:        log,
		UserStates: make(map[int64]string),
	}
}

// Start receives updates by long polling and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("create update handler: %w", err)
	}
	b.register(handler)

	go func() {
		<-ctx.Done()
		if err := handler.Stop(); err != nil {
			b.log.Warn("update handler stop failed", zap.Error(err))
		}
	}()

	b.log.Info("telegram bot started")
	return handler.Start()
}

func (b *Bot) setState(userID int64, gateway string) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.UserStates[userID] = gateway
}

func (b *Bot) state(userID int64) (string, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	gw, ok := b.UserStates[userID]
	return gw, ok
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.UserStates, userID)
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
