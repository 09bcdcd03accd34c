package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"premium-bot/internal/models"
	"premium-bot/internal/payment"
	"premium-bot/internal/purchase"
	"premium-bot/internal/support"
)

const grantUsage = "Usage: /grant <user_id> <week|month|forever>"

func (b *Bot) register(handler *th.BotHandler) {
	handler.Handle(b.handleStart, th.CommandEqual("start"), fromUser)
	handler.Handle(b.handleInfo, th.CommandEqual("info"), fromUser)
	handler.Handle(b.handleClose, th.CommandEqual("close"), fromUser)
	handler.Handle(b.handleGrant, th.CommandEqual("grant"), b.fromAdmin)
	handler.Handle(b.handleAddLink, th.CommandEqual("addlink"), b.fromAdmin)
	handler.Handle(b.handleHistory, th.CommandEqual("history"), b.fromAdmin)
	handler.Handle(b.handleTranscript, th.CommandEqual("transcript"), b.fromAdmin)

	handler.Handle(b.handlePreCheckout, th.AnyPreCheckoutQuery())
	handler.Handle(b.handleSuccessfulPayment, successfulPayment)
	handler.Handle(b.handleCallback, th.AnyCallbackQuery())

	handler.Handle(b.handleOperatorReply, b.fromAdmin, operatorReply)
	handler.Handle(b.handlePhoto, photoMessage)
	handler.Handle(b.handleText, th.AnyMessageWithText(), fromUser)
}

func (b *Bot) fromAdmin(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.From != nil && update.Message.From.ID == b.adminID
}

func fromUser(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.From != nil
}

func operatorReply(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.ReplyToMessage != nil && strings.TrimSpace(update.Message.Text) != ""
}

func successfulPayment(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.From != nil && update.Message.SuccessfulPayment != nil
}

func photoMessage(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.From != nil && len(update.Message.Photo) > 0
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, kb *telego.InlineKeyboardMarkup) {
	params := tu.Message(tu.ID(chatID), text)
	if kb != nil {
		params = params.WithReplyMarkup(kb)
	}
	if _, err := b.Instance.SendMessage(ctx, params); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	b.clearState(userID)
	b.reply(ctx, update.Message.Chat.ID, welcomeText, mainMenuKeyboard(b.channelURL))
	return nil
}

func (b *Bot) handleInfo(ctx *th.Context, update telego.Update) error {
	user := update.Message.From
	text, err := b.info(ctx, *user)
	if err != nil {
		b.log.Error("failed to load entitlement", zap.Int64("user_id", user.ID), zap.Error(err))
		b.reply(ctx, update.Message.Chat.ID, genericErrorText, nil)
		return nil
	}
	b.reply(ctx, update.Message.Chat.ID, text, upgradeKeyboard())
	return nil
}

// info checks the entitlement first so an expired record is purged before
// it is displayed.
func (b *Bot) info(ctx context.Context, user telego.User) (string, error) {
	userID := userKey(user.ID)
	if _, err := b.ents.IsEntitled(ctx, userID); err != nil {
		return "", err
	}
	rem, err := b.ents.Remaining(ctx, userID)
	if err != nil {
		return "", err
	}
	return infoText(user, rem), nil
}

func (b *Bot) handleClose(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	b.clearState(userID)
	if _, err := b.support.CloseForUser(ctx, userKey(userID)); err != nil {
		if !errors.Is(err, support.ErrNoActiveConversation) && !errors.Is(err, support.ErrConversationClosed) {
			b.log.Error("failed to close conversation", zap.Int64("user_id", userID), zap.Error(err))
		}
		b.reply(ctx, update.Message.Chat.ID, userErrorText(err), nil)
	}
	return nil
}

type grantArgs struct {
	userID   string
	plan     models.PlanKind
	lifetime bool
}

func parseGrantArgs(text string) (grantArgs, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return grantArgs{}, errors.New(grantUsage)
	}
	if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
		return grantArgs{}, fmt.Errorf("invalid user id %q", fields[1])
	}
	args := grantArgs{userID: fields[1]}
	if strings.EqualFold(fields[2], "forever") {
		args.plan = models.PlanMonth
		args.lifetime = true
		return args, nil
	}
	plan, err := models.ParsePlan(fields[2])
	if err != nil {
		return grantArgs{}, errors.New(grantUsage)
	}
	args.plan = plan
	return args, nil
}

func (b *Bot) handleGrant(ctx *th.Context, update telego.Update) error {
	chatID := update.Message.Chat.ID
	args, err := parseGrantArgs(update.Message.Text)
	if err != nil {
		b.reply(ctx, chatID, err.Error(), nil)
		return nil
	}
	res, err := b.purchases.GrantDirect(ctx, args.userID, args.plan, args.lifetime)
	if err != nil {
		b.log.Error("manual grant failed", zap.String("user_id", args.userID), zap.Error(err))
		b.reply(ctx, chatID, genericErrorText, nil)
		return nil
	}
	b.log.Info("manual grant", zap.String("user_id", args.userID), zap.String("plan", string(args.plan)), zap.Bool("lifetime", args.lifetime))
	b.reply(ctx, chatID, fmt.Sprintf("✅ Granted premium to %s.\n%s", args.userID, grantedText(res.Entitlement)), nil)
	return nil
}

func (b *Bot) handlePreCheckout(ctx *th.Context, update telego.Update) error {
	q := update.PreCheckoutQuery
	params := &telego.AnswerPreCheckoutQueryParams{PreCheckoutQueryID: q.ID, Ok: true}
	if err := b.purchases.PreCheckout(q.From.ID, q.InvoicePayload, q.Currency, int64(q.TotalAmount)); err != nil {
		b.log.Warn("pre-checkout rejected",
			zap.Int64("user_id", q.From.ID),
			zap.String("payload", q.InvoicePayload),
			zap.Error(err),
		)
		params.Ok = false
		params.ErrorMessage = "This invoice is no longer valid. Please start a new purchase."
	}
	return ctx.Bot().AnswerPreCheckoutQuery(ctx, params)
}

func (b *Bot) handleSuccessfulPayment(ctx *th.Context, update telego.Update) error {
	msg := update.Message
	sp := msg.SuccessfulPayment
	_, err := b.purchases.ConfirmCallback(ctx, payment.SuccessfulPayment{
		UserID:           userKey(msg.From.ID),
		ChatID:           msg.Chat.ID,
		Payload:          sp.InvoicePayload,
		Currency:         sp.Currency,
		TotalAmount:      int64(sp.TotalAmount),
		ChargeID:         sp.TelegramPaymentChargeID,
		ProviderChargeID: sp.ProviderPaymentChargeID,
	})
	if err != nil {
		b.log.Error("failed to confirm payment",
			zap.Int64("user_id", msg.From.ID),
			zap.String("charge_id", sp.TelegramPaymentChargeID),
			zap.Error(err),
		)
		b.reply(ctx, msg.Chat.ID, "❌ We could not activate your premium automatically. Please use \"Report Problem or Suggestion\" and include your payment details.", nil)
	}
	return nil
}

func (b *Bot) handleCallback(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	if err := ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID)); err != nil {
		b.log.Warn("failed to answer callback", zap.String("data", q.Data), zap.Error(err))
	}

	userID := q.From.ID
	cb := parseCallback(q.Data)
	switch cb.action {
	case actionBuyPremium:
		b.clearState(userID)
		b.reply(ctx, userID, choosePaymentText, gatewayKeyboard(b.gateways.Names()))
	case actionBack:
		b.clearState(userID)
		b.reply(ctx, userID, welcomeText, mainMenuKeyboard(b.channelURL))
	case actionReportProblem:
		b.openReport(ctx, userID)
	case actionChooseGateway:
		b.chooseGateway(ctx, userID, cb.gateway)
	case actionChoosePlan:
		b.startPurchase(ctx, userID, cb.gateway, cb.plan)
	case actionCheckStatus:
		b.checkStatus(ctx, userID, cb.token)
	case actionApprove, actionReject:
		if userID != b.adminID {
			return nil
		}
		b.decideReview(ctx, q, cb)
	default:
		b.log.Debug("unknown callback", zap.String("data", q.Data))
	}
	return nil
}

func (b *Bot) openReport(ctx context.Context, userID int64) {
	b.clearState(userID)
	_, created, err := b.support.Open(ctx, userKey(userID))
	if err != nil {
		b.log.Error("failed to open conversation", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(ctx, userID, genericErrorText, nil)
		return
	}
	if !created {
		b.reply(ctx, userID, reportActiveText, nil)
		return
	}
	b.reply(ctx, userID, reportPromptText, nil)
}

type payURLer interface {
	PayURL() string
}

// chooseGateway shows the plan menu, or for manual gateways asks for proof.
func (b *Bot) chooseGateway(ctx context.Context, userID int64, gateway string) {
	adapter, err := b.gateways.Get(gateway)
	if err != nil {
		b.reply(ctx, userID, userErrorText(err), nil)
		return
	}
	if adapter.Kind() != payment.KindManual {
		b.reply(ctx, userID, choosePlanText(gateway), planKeyboard(gateway))
		return
	}

	b.setState(userID, gateway)
	if p, ok := adapter.(payURLer); ok {
		b.reply(ctx, userID, linkPromptText(p.PayURL()), nil)
		return
	}
	b.reply(ctx, userID, screenshotPromptText, nil)
}

func (b *Bot) startPurchase(ctx context.Context, userID int64, gateway string, plan models.PlanKind) {
	res, err := b.purchases.Start(ctx, purchase.StartRequest{
		UserID:  userKey(userID),
		ChatID:  userID,
		Gateway: gateway,
		Plan:    plan,
	})
	if err != nil {
		b.reply(ctx, userID, userErrorText(err), nil)
		return
	}
	b.renderResult(ctx, userID, res)
}

func (b *Bot) submitProof(ctx context.Context, userID int64, gateway string, proof payment.Proof) {
	res, err := b.purchases.Start(ctx, purchase.StartRequest{
		UserID:  userKey(userID),
		ChatID:  userID,
		Gateway: gateway,
		Proof:   &proof,
	})
	if err != nil {
		// The state stays so the user can send another proof.
		b.reply(ctx, userID, userErrorText(err), nil)
		return
	}
	b.clearState(userID)
	b.renderResult(ctx, userID, res)
}

func (b *Bot) renderResult(ctx context.Context, chatID int64, res purchase.Result) {
	switch res.State {
	case purchase.StateAwaitingPayment:
		b.sendInvoice(ctx, chatID, res.Invoice)
	case purchase.StatePending:
		b.reply(ctx, chatID, pendingCreatedText(res.Token), checkKeyboard(res.Token))
	case purchase.StateAwaitingReview:
		b.reply(ctx, chatID, proofQueuedText, nil)
	case purchase.StateGranted:
		if res.Duplicate {
			b.reply(ctx, chatID, "✅ This payment was already applied to your premium.", nil)
		}
	case purchase.StateFailed:
		b.reply(ctx, chatID, "❌ The payment failed or the invoice expired. Start a new purchase from the menu.", upgradeKeyboard())
	}
}

func (b *Bot) sendInvoice(ctx context.Context, chatID int64, inv *payment.Invoice) {
	if inv == nil {
		b.reply(ctx, chatID, genericErrorText, nil)
		return
	}
	_, err := b.Instance.SendInvoice(ctx, &telego.SendInvoiceParams{
		ChatID:        tu.ID(chatID),
		Title:         inv.Title,
		Description:   inv.Description,
		Payload:       inv.Payload,
		ProviderToken: inv.ProviderToken,
		Currency:      inv.Currency,
		Prices:        []telego.LabeledPrice{{Label: inv.Title, Amount: int(inv.Amount)}},
	})
	if err != nil {
		b.log.Error("failed to send invoice", zap.Int64("chat_id", chatID), zap.String("payload", inv.Payload), zap.Error(err))
		b.reply(ctx, chatID, genericErrorText, nil)
	}
}

func (b *Bot) checkStatus(ctx context.Context, userID int64, token string) {
	res, err := b.purchases.CheckStatus(ctx, userKey(userID), token)
	if err != nil {
		b.reply(ctx, userID, userErrorText(err), nil)
		return
	}
	if res.State == purchase.StatePending {
		b.reply(ctx, userID, pendingText, checkKeyboard(res.Token))
		return
	}
	b.renderResult(ctx, userID, res)
}

func (b *Bot) decideReview(ctx context.Context, q *telego.CallbackQuery, cb callback) {
	var (
		res purchase.Result
		err error
	)
	approved := cb.action == actionApprove
	if approved {
		res, err = b.purchases.Approve(ctx, cb.reviewID, cb.plan)
	} else {
		res, err = b.purchases.Reject(ctx, cb.reviewID)
	}

	switch {
	case errors.Is(err, purchase.ErrReviewDecided):
		b.reply(ctx, b.adminID, fmt.Sprintf("Review #%d was already decided.", cb.reviewID), nil)
	case errors.Is(err, purchase.ErrReviewNotFound):
		b.reply(ctx, b.adminID, fmt.Sprintf("Review #%d not found.", cb.reviewID), nil)
	case err != nil:
		b.log.Error("review decision failed", zap.Uint("review_id", cb.reviewID), zap.Error(err))
		b.reply(ctx, b.adminID, genericErrorText, nil)
		return
	default:
		b.reply(ctx, b.adminID, reviewDecisionText(res, approved), nil)
	}

	if q.Message == nil {
		return
	}
	_, err = b.Instance.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:    tu.ID(q.Message.GetChat().ID),
		MessageID: q.Message.GetMessageID(),
	})
	if err != nil {
		b.log.Debug("failed to clear review keyboard", zap.Uint("review_id", cb.reviewID), zap.Error(err))
	}
}

func (b *Bot) handleOperatorReply(ctx *th.Context, update telego.Update) error {
	msg := update.Message
	_, err := b.support.PostOperatorReply(ctx, msg.ReplyToMessage.MessageID, msg.Text)
	switch {
	case err == nil:
		b.reply(ctx, msg.Chat.ID, "✅ Reply delivered.", nil)
	case errors.Is(err, support.ErrConversationClosed):
		b.reply(ctx, msg.Chat.ID, "This conversation is already closed.", nil)
	case errors.Is(err, support.ErrNoActiveConversation):
		b.reply(ctx, msg.Chat.ID, "This message is not part of a support conversation.", nil)
	default:
		b.log.Error("failed to relay operator reply", zap.Int("reply_to", msg.ReplyToMessage.MessageID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, genericErrorText, nil)
	}
	return nil
}

func (b *Bot) handlePhoto(ctx *th.Context, update telego.Update) error {
	msg := update.Message
	userID := msg.From.ID
	gateway, ok := b.state(userID)
	if !ok {
		b.reply(ctx, msg.Chat.ID, "To send a payment screenshot, open \"Buy Premium\" and choose the screenshot option first.", nil)
		return nil
	}
	largest := msg.Photo[len(msg.Photo)-1]
	b.submitProof(ctx, userID, gateway, payment.Proof{Kind: models.ProofImage, Value: largest.FileID})
	return nil
}

func (b *Bot) handleText(ctx *th.Context, update telego.Update) error {
	msg := update.Message
	if strings.HasPrefix(msg.Text, "/") {
		return nil
	}
	userID := msg.From.ID

	if gateway, ok := b.state(userID); ok {
		b.submitProof(ctx, userID, gateway, payment.Proof{Kind: models.ProofLink, Value: msg.Text})
		return nil
	}

	_, err := b.support.PostUserMessage(ctx, userKey(userID), msg.Text)
	switch {
	case err == nil:
		b.reply(ctx, msg.Chat.ID, reportSentText, nil)
	case errors.Is(err, support.ErrNoActiveConversation):
		b.reply(ctx, msg.Chat.ID, welcomeText, mainMenuKeyboard(b.channelURL))
	default:
		b.log.Error("failed to relay user message", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(ctx, msg.Chat.ID, userErrorText(err), nil)
	}
	return nil
}
