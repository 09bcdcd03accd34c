package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"premium-bot/internal/models"
	"premium-bot/internal/payment"
)

// Notifier sends orchestrator, sweeper and support events over Telegram.
type Notifier struct {
	api     *telego.Bot
	adminID int64
	log     *zap.Logger
}

func NewNotifier(api *telego.Bot, adminID int64, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{api: api, adminID: adminID, log: log}
}

func userChat(userID string) (telego.ChatID, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}
	return tu.ID(id), nil
}

func (n *Notifier) send(ctx context.Context, chat telego.ChatID, text string, kb *telego.InlineKeyboardMarkup) (*telego.Message, error) {
	params := tu.Message(chat, text)
	if kb != nil {
		params = params.WithReplyMarkup(kb)
	}
	return n.api.SendMessage(ctx, params)
}

func (n *Notifier) sendUser(ctx context.Context, userID, text string, kb *telego.InlineKeyboardMarkup) error {
	chat, err := userChat(userID)
	if err != nil {
		return err
	}
	_, err = n.send(ctx, chat, text, kb)
	return err
}

func (n *Notifier) NotifyGranted(ctx context.Context, ent *models.Entitlement, tx *payment.Transaction) error {
	if err := n.sendUser(ctx, tx.UserID, grantedText(ent), nil); err != nil {
		return err
	}
	// Reviewed and operator grants carry no amount.
	if tx.Amount == 0 {
		return nil
	}
	if _, err := n.send(ctx, tu.ID(n.adminID), purchaseNoticeText(tx), nil); err != nil {
		n.log.Warn("failed to send purchase notice", zap.String("user_id", tx.UserID), zap.Error(err))
	}
	return nil
}

func (n *Notifier) NotifyRejected(ctx context.Context, review *models.ManualReview) error {
	return n.sendUser(ctx, review.UserID, rejectedText, nil)
}

// RequestReview forwards a proof to the operator with approve and reject
// buttons. Screenshots go out as the photo itself.
func (n *Notifier) RequestReview(ctx context.Context, review *models.ManualReview) error {
	kb := reviewKeyboard(review.ID)
	if review.ProofKind == models.ProofImage {
		_, err := n.api.SendPhoto(ctx, tu.Photo(tu.ID(n.adminID), tu.FileFromID(review.Proof)).
			WithCaption(reviewText(review)).
			WithReplyMarkup(kb))
		return err
	}
	_, err := n.send(ctx, tu.ID(n.adminID), reviewText(review), kb)
	return err
}

func (n *Notifier) SendRenewalReminder(ctx context.Context, userID string, daysLeft int, _ time.Time) error {
	return n.sendUser(ctx, userID, reminderText(daysLeft), upgradeKeyboard())
}

func (n *Notifier) RelayToOperator(ctx context.Context, conv *models.Conversation, text string) (int, error) {
	msg, err := n.send(ctx, tu.ID(n.adminID), reportText(conv, text), nil)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (n *Notifier) DeliverToUser(ctx context.Context, userID, text string) error {
	return n.sendUser(ctx, userID, adminResponseText(text), nil)
}

func (n *Notifier) NotifyClosed(ctx context.Context, conv *models.Conversation) error {
	if err := n.sendUser(ctx, conv.UserID, closedUserText, nil); err != nil {
		return err
	}
	_, err := n.send(ctx, tu.ID(n.adminID), closedAdminText(conv), nil)
	return err
}
