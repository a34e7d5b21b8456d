package handlers

import (
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/internal/utils"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

const (
	cbBuy     = "buy"
	cbVerify  = "verify"
	cbStats   = "stats"
	cbPlan    = "plan_"
	cbPaid    = "paid_"
	cbConfirm = "confirm_"
)

func accessKeyboard() models.InlineKeyboardMarkup {
	kb := utils.BuildInlineKeyboard([]utils.Button{
		{Text: "💎 Buy Premium", CallbackData: cbBuy},
		{Text: "🔗 Verify Free", CallbackData: cbVerify},
	}, 2)
	kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
		{Text: "📊 My Stats", CallbackData: cbStats},
	})
	return kb
}

func plansKeyboard(plans []types.Plan) models.InlineKeyboardMarkup {
	buttons := make([]utils.Button, 0, len(plans))
	for _, p := range plans {
		buttons = append(buttons, utils.Button{Text: messages.PlanButton(p), CallbackData: cbPlan + p.Key})
	}
	return utils.BuildInlineKeyboard(buttons, 2)
}

func paymentKeyboard(paymentID string) models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: "✅ I have paid", CallbackData: cbPaid + paymentID},
	}, 1)
}

func operatorKeyboard(paymentID string) models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: "✅ Confirm " + paymentID, CallbackData: cbConfirm + paymentID},
	}, 1)
}

func verifyKeyboard(link string) models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: "🔗 Verify now", URL: link},
	}, 1)
}

func buyKeyboard() models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: "💎 Buy Premium", CallbackData: cbBuy},
	}, 1)
}
