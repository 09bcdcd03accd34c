package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/entitlement"
	"premium-bot/internal/models"
	"premium-bot/internal/payment"
	"premium-bot/internal/support"
)

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "N/A", formatRemaining(entitlement.Remaining{State: entitlement.StateNone}))
	assert.Equal(t, "Expired", formatRemaining(entitlement.Remaining{State: entitlement.StateExpired}))
	assert.Equal(t, "Lifetime", formatRemaining(entitlement.Remaining{State: entitlement.StateLifetime}))
	assert.Equal(t, "6 days, 23 hours", formatRemaining(entitlement.Remaining{
		State: entitlement.StateActive,
		Left:  7*24*time.Hour - 30*time.Minute,
	}))
	assert.Equal(t, "0 days, 0 hours", formatRemaining(entitlement.Remaining{
		State: entitlement.StateActive,
		Left:  59 * time.Minute,
	}))
}

func TestInfoText(t *testing.T) {
	user := telego.User{ID: 42, FirstName: "Ann", Username: "ann"}

	text := infoText(user, entitlement.Remaining{State: entitlement.StateActive, Left: 50 * time.Hour})
	assert.Contains(t, text, "User ID: 42")
	assert.Contains(t, text, "Username: @ann")
	assert.Contains(t, text, "User Type: Premium User")
	assert.Contains(t, text, "Premium Duration: 2 days, 2 hours")

	text = infoText(telego.User{ID: 7, FirstName: "Bo"}, entitlement.Remaining{State: entitlement.StateExpired})
	assert.Contains(t, text, "Username: N/A")
	assert.Contains(t, text, "User Type: Free User")
	assert.Contains(t, text, "Premium Duration: Expired")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "46 XTR", formatAmount(46, "XTR"))
	assert.Equal(t, "6.00 USD", formatAmount(600, "USD"))
}

func TestGrantedText(t *testing.T) {
	expires := time.Date(2026, time.May, 3, 10, 30, 0, 0, time.UTC)
	assert.Contains(t, grantedText(&models.Entitlement{ExpiresAt: &expires}), "2026-05-03 10:30")
	assert.Contains(t, grantedText(&models.Entitlement{}), "forever")
}

func TestUserErrorText(t *testing.T) {
	assert.Equal(t, unavailableText, userErrorText(fmt.Errorf("cryptomus: %w", payment.ErrTransient)))
	assert.Equal(t, "❌ A screenshot is required",
		userErrorText(fmt.Errorf("%w: %s", payment.ErrValidation, "a screenshot is required")))
	assert.Equal(t, noConversationText, userErrorText(support.ErrNoActiveConversation))
	assert.Equal(t, genericErrorText, userErrorText(assert.AnError))
}

func TestParseGrantArgs(t *testing.T) {
	args, err := parseGrantArgs("/grant 1001 week")
	require.NoError(t, err)
	assert.Equal(t, grantArgs{userID: "1001", plan: models.PlanWeek}, args)

	args, err = parseGrantArgs("/grant 1001 Forever")
	require.NoError(t, err)
	assert.True(t, args.lifetime)

	for _, text := range []string{"/grant", "/grant 1001", "/grant abc week", "/grant 1001 year", "/grant 1 week extra"} {
		_, err := parseGrantArgs(text)
		assert.Error(t, err, text)
	}
}

func TestGatewayKeyboardListsOnlyRegistered(t *testing.T) {
	kb := gatewayKeyboard([]string{"stars", "cryptomus"})
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "pay_stars", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "pay_cryptomus", kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, cbBack, kb.InlineKeyboard[2][0].CallbackData)
}

func TestCheckKeyboard(t *testing.T) {
	kb := checkKeyboard(&payment.PendingToken{Token: "tok", PayURL: "https://pay.example/1"})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "https://pay.example/1", kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "check_tok", kb.InlineKeyboard[1][0].CallbackData)

	kb = checkKeyboard(&payment.PendingToken{Token: "tok"})
	require.Len(t, kb.InlineKeyboard, 1)
}

func TestParseAddLink(t *testing.T) {
	link, err := parseAddLink("/addlink https://paypal.me/shop/5 month order 77")
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.me/shop/5", link.URL)
	assert.Equal(t, models.PlanMonth, link.PlanKind)
	assert.Equal(t, "order 77", link.Note)

	link, err = parseAddLink("/addlink https://paypal.me/shop/5 from march")
	require.NoError(t, err)
	assert.Empty(t, link.PlanKind)
	assert.Equal(t, "from march", link.Note)

	_, err = parseAddLink("/addlink")
	assert.Error(t, err)
}

func TestHistoryAndTranscriptText(t *testing.T) {
	at := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "No purchases recorded for user 5.", historyText("5", nil))
	text := historyText("5", []models.PurchaseTransaction{
		{Gateway: "cryptomus", PlanKind: models.PlanMonth, Amount: 600, Currency: "USD", CreatedAt: at},
		{Gateway: "screenshot", PlanKind: models.PlanWeek, CreatedAt: at},
	})
	assert.Contains(t, text, "2026-04-02 09:00  cryptomus  month  6.00 USD")
	assert.Contains(t, text, "screenshot  week  -")

	text = transcriptText(3, []models.Message{
		{FromUser: true, Text: "help", Timestamp: at},
		{FromUser: false, Text: "on it", Timestamp: at},
	})
	assert.Contains(t, text, "User: help")
	assert.Contains(t, text, "Admin: on it")
}
