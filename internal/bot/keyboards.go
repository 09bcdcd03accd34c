package bot

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"premium-bot/internal/models"
	"premium-bot/internal/payment"
)

func mainMenuKeyboard(channelURL string) *telego.InlineKeyboardMarkup {
	rows := [][]telego.InlineKeyboardButton{
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("💎 Buy Premium").WithCallbackData(cbBuyPremium)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📝 Report Problem or Suggestion").WithCallbackData(cbReportProblem)),
	}
	if channelURL != "" {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("📢 Visit our Telegram").WithURL(channelURL)))
	}
	return tu.InlineKeyboard(rows...)
}

// gatewayKeyboard lists only the gateways that are registered, so a
// gateway without credentials never shows up.
func gatewayKeyboard(gateways []string) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(gateways)+1)
	for _, name := range gateways {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(gatewayTitle(name)).WithCallbackData(payData(name)),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Back").WithCallbackData(cbBack)))
	return tu.InlineKeyboard(rows...)
}

func planKeyboard(gateway string) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, 3)
	for _, plan := range models.Plans() {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(plan.Title()).WithCallbackData(planData(gateway, plan)),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Back").WithCallbackData(cbBuyPremium)))
	return tu.InlineKeyboard(rows...)
}

func checkKeyboard(tok *payment.PendingToken) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, 2)
	if tok.PayURL != "" {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("💳 Pay").WithURL(tok.PayURL)))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ I've paid, check status").WithCallbackData(checkData(tok.Token)),
	))
	return tu.InlineKeyboard(rows...)
}

func reviewKeyboard(reviewID uint) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Week").WithCallbackData(approveData(reviewID, models.PlanWeek)),
			tu.InlineKeyboardButton("✅ Month").WithCallbackData(approveData(reviewID, models.PlanMonth)),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("❌ Reject").WithCallbackData(rejectData(reviewID)),
		),
	)
}

func upgradeKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("💎 Upgrade to Premium").WithCallbackData(cbBuyPremium)),
	)
}
