package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"premium-bot/internal/entitlement"
	"premium-bot/internal/models"
	"premium-bot/internal/payment"
	"premium-bot/internal/purchase"
	"premium-bot/internal/support"
)

const (
	welcomeText = "👋 Welcome! Choose an option below:"

	choosePaymentText = "💎 Choose a payment method:"

	reportPromptText = "📝 Please describe your problem or suggestion in a single message.\n" +
		"An admin will reply here. Use /close to end the conversation."

	reportActiveText = "You already have an active conversation. Send your message and an admin will reply, or use /close to end it."

	reportSentText = "✅ Your message has been sent to the admin."

	closedUserText = "Conversation closed. Thank you for contacting us!\nUse the menu to start a new one at any time."

	noConversationText = "You have no active conversation."

	screenshotPromptText = "📸 Send a screenshot of your payment receipt as a photo.\nAn admin will check it and activate your premium."

	proofQueuedText = "⏳ Thanks! Your payment proof was sent for review. You'll be notified once an admin checks it."

	rejectedText = "❌ Your payment proof was rejected. If you believe this is a mistake, use \"Report Problem or Suggestion\"."

	pendingText = "⏳ Payment not received yet. Complete the payment and press the check button again."

	unavailableText = "⚠️ The payment service is not responding. Please try again in a minute."

	genericErrorText = "❌ Something went wrong. Please try again later."
)

var gatewayTitles = map[string]string{
	"stars":      "⭐ Telegram Stars",
	"tranzzo":    "💳 Card",
	"cryptobot":  "🤖 CryptoBot",
	"cryptomus":  "🪙 Cryptomus",
	"yookassa":   "🇷🇺 YooKassa",
	"paypal":     "🅿️ PayPal",
	"screenshot": "📸 Send payment screenshot",
}

func gatewayTitle(name string) string {
	if title, ok := gatewayTitles[name]; ok {
		return title
	}
	return name
}

// formatRemaining renders what is left of an entitlement the way /info
// shows it.
func formatRemaining(r entitlement.Remaining) string {
	switch r.State {
	case entitlement.StateLifetime:
		return "Lifetime"
	case entitlement.StateExpired:
		return "Expired"
	case entitlement.StateActive:
		days := int(r.Left / (24 * time.Hour))
		hours := int((r.Left % (24 * time.Hour)) / time.Hour)
		return fmt.Sprintf("%d days, %d hours", days, hours)
	default:
		return "N/A"
	}
}

func infoText(user telego.User, r entitlement.Remaining) string {
	userType := "Free User"
	if r.State == entitlement.StateActive || r.State == entitlement.StateLifetime {
		userType = "Premium User"
	}
	username := "N/A"
	if user.Username != "" {
		username = "@" + user.Username
	}

	var sb strings.Builder
	sb.WriteString("👤 User Info\n\n")
	fmt.Fprintf(&sb, "First Name: %s\n", user.FirstName)
	fmt.Fprintf(&sb, "User ID: %d\n", user.ID)
	fmt.Fprintf(&sb, "Username: %s\n", username)
	fmt.Fprintf(&sb, "User Type: %s\n", userType)
	fmt.Fprintf(&sb, "Premium Duration: %s", formatRemaining(r))
	return sb.String()
}

func choosePlanText(gateway string) string {
	return fmt.Sprintf("%s\nChoose your plan:", gatewayTitle(gateway))
}

func pendingCreatedText(tok *payment.PendingToken) string {
	return fmt.Sprintf("🧾 Invoice created for %s.\nPay using the button below, then press \"I've paid\" to activate premium.\nThe invoice is valid until %s UTC.",
		tok.Plan.Title(), tok.ExpiresAt.UTC().Format("2006-01-02 15:04"))
}

func linkPromptText(payURL string) string {
	if payURL == "" {
		return "🔗 Send the payment link you received after paying."
	}
	return fmt.Sprintf("🔗 Pay here: %s\nThen send the payment link you received as a message.", payURL)
}

func grantedText(ent *models.Entitlement) string {
	if ent == nil || ent.ExpiresAt == nil {
		return "🎉 Thank you for your purchase! Your premium is active forever."
	}
	return fmt.Sprintf("🎉 Thank you for your purchase! Your premium is active until %s UTC.",
		ent.ExpiresAt.UTC().Format("2006-01-02 15:04"))
}

func purchaseNoticeText(tx *payment.Transaction) string {
	return fmt.Sprintf("💰 Someone just bought premium with amount %s\nGateway: %s\nPlan: %s\nUser ID: %s",
		formatAmount(tx.Amount, tx.Currency), tx.Gateway, tx.Plan, tx.UserID)
}

// formatAmount prints minor units as a decimal, except for currencies
// without minor units.
func formatAmount(amount int64, currency string) string {
	if currency == "XTR" {
		return strconv.FormatInt(amount, 10) + " " + currency
	}
	return payment.FormatMajor(amount) + " " + currency
}

func reminderText(daysLeft int) string {
	return fmt.Sprintf("⚠️ Premium Alert! Your premium subscription will expire in %d days!\nRenew now to keep your premium benefits.", daysLeft)
}

func reportText(conv *models.Conversation, text string) string {
	return fmt.Sprintf("📩 New report from User ID: %s\nConversation ID: %d\n\nMessage:\n%s\n\nReply to this message to respond to the user.",
		conv.UserID, conv.ID, text)
}

func adminResponseText(text string) string {
	return "💬 Admin response:\n" + text
}

func closedAdminText(conv *models.Conversation) string {
	return fmt.Sprintf("Conversation %d with User %s has been closed.", conv.ID, conv.UserID)
}

func reviewText(review *models.ManualReview) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 Payment review #%d\n", review.ID)
	fmt.Fprintf(&sb, "User ID: %s\n", review.UserID)
	fmt.Fprintf(&sb, "Method: %s", review.Gateway)
	if review.PlanKind != "" {
		fmt.Fprintf(&sb, "\nRequested plan: %s", review.PlanKind)
	}
	if review.ProofKind == models.ProofLink {
		fmt.Fprintf(&sb, "\nLink: %s", review.Proof)
	}
	return sb.String()
}

func reviewDecisionText(res purchase.Result, approved bool) string {
	if !approved {
		return fmt.Sprintf("❌ Review #%d rejected.", res.Review.ID)
	}
	return fmt.Sprintf("✅ Review #%d approved: %s for user %s.", res.Review.ID, res.Review.PlanKind, res.Review.UserID)
}

// userErrorText maps orchestrator and relay errors to what the user sees.
func userErrorText(err error) string {
	switch {
	case errors.Is(err, payment.ErrTransient):
		return unavailableText
	case errors.Is(err, payment.ErrValidation):
		return "❌ " + validationReason(err)
	case errors.Is(err, payment.ErrTokenNotFound):
		return "This payment is no longer pending. Start a new purchase from the menu."
	case errors.Is(err, purchase.ErrTokenOwnership):
		return "This payment belongs to another user."
	case errors.Is(err, payment.ErrGatewayDisabled), errors.Is(err, payment.ErrUnknownGateway):
		return "This payment method is not available right now."
	case errors.Is(err, support.ErrNoActiveConversation):
		return noConversationText
	case errors.Is(err, support.ErrConversationClosed):
		return "This conversation is already closed."
	case errors.Is(err, support.ErrEmptyMessage):
		return "Please send a text message."
	default:
		return genericErrorText
	}
}

func validationReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return "Invalid payment details."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
