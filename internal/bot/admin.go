package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"go.uber.org/zap"

	"premium-bot/internal/models"
)

const (
	addLinkUsage    = "Usage: /addlink <url> [week|month] [note]"
	historyUsage    = "Usage: /history <user_id>"
	transcriptUsage = "Usage: /transcript <conversation_id>"

	historyLimit = 10
)

func parseAddLink(text string) (*models.PaymentLink, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, errors.New(addLinkUsage)
	}
	link := &models.PaymentLink{URL: fields[1]}
	rest := fields[2:]
	if len(rest) > 0 {
		if plan, err := models.ParsePlan(rest[0]); err == nil {
			link.PlanKind = plan
			rest = rest[1:]
		}
	}
	link.Note = strings.Join(rest, " ")
	return link, nil
}

func (b *Bot) handleAddLink(ctx *th.Context, update telego.Update) error {
	chatID := update.Message.Chat.ID
	link, err := parseAddLink(update.Message.Text)
	if err != nil {
		b.reply(ctx, chatID, err.Error(), nil)
		return nil
	}
	if err := b.links.Register(ctx, link); err != nil {
		b.log.Error("failed to register payment link", zap.String("url", link.URL), zap.Error(err))
		b.reply(ctx, chatID, genericErrorText, nil)
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Payment link #%d registered.", link.ID), nil)
	return nil
}

func (b *Bot) handleHistory(ctx *th.Context, update telego.Update) error {
	chatID := update.Message.Chat.ID
	fields := strings.Fields(update.Message.Text)
	if len(fields) != 2 {
		b.reply(ctx, chatID, historyUsage, nil)
		return nil
	}
	txs, err := b.history.ListByUser(ctx, fields[1], historyLimit)
	if err != nil {
		b.log.Error("failed to load purchase history", zap.String("user_id", fields[1]), zap.Error(err))
		b.reply(ctx, chatID, genericErrorText, nil)
		return nil
	}
	b.reply(ctx, chatID, historyText(fields[1], txs), nil)
	return nil
}

func (b *Bot) handleTranscript(ctx *th.Context, update telego.Update) error {
	chatID := update.Message.Chat.ID
	fields := strings.Fields(update.Message.Text)
	if len(fields) != 2 {
		b.reply(ctx, chatID, transcriptUsage, nil)
		return nil
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || id == 0 {
		b.reply(ctx, chatID, transcriptUsage, nil)
		return nil
	}
	msgs, err := b.support.Transcript(ctx, uint(id))
	if err != nil {
		b.log.Error("failed to load transcript", zap.Uint64("conversation_id", id), zap.Error(err))
		b.reply(ctx, chatID, genericErrorText, nil)
		return nil
	}
	b.reply(ctx, chatID, transcriptText(uint(id), msgs), nil)
	return nil
}

func historyText(userID string, txs []models.PurchaseTransaction) string {
	if len(txs) == 0 {
		return fmt.Sprintf("No purchases recorded for user %s.", userID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 Purchases of user %s:", userID)
	for _, tx := range txs {
		amount := "-"
		if tx.Amount > 0 {
			amount = formatAmount(tx.Amount, tx.Currency)
		}
		fmt.Fprintf(&sb, "\n%s  %s  %s  %s", tx.CreatedAt.UTC().Format("2006-01-02 15:04"), tx.Gateway, tx.PlanKind, amount)
	}
	return sb.String()
}

func transcriptText(conversationID uint, msgs []models.Message) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("Conversation %d has no messages.", conversationID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "💬 Conversation %d:", conversationID)
	for _, m := range msgs {
		who := "Admin"
		if m.FromUser {
			who = "User"
		}
		fmt.Fprintf(&sb, "\n[%s] %s: %s", m.Timestamp.UTC().Format("01-02 15:04"), who, m.Text)
	}
	return sb.String()
}
