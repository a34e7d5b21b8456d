package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
)

func (bh *Handlers) HandleClickButton(ctx context.Context, s Sender, update *models.Update, user contextkeys.User) {
	if update.CallbackQuery == nil {
		return
	}
	cq := update.CallbackQuery
	messageID := 0
	if cq.Message.Message != nil {
		messageID = cq.Message.Message.ID
	}

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = cq.Data
	}
	data = strings.TrimSpace(data)

	switch {
	case data == cbBuy:
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.sendPlans(ctx, s, user, messageID)
	case data == cbVerify:
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.sendVerificationLink(ctx, s, user)
	case data == cbStats:
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.sendStats(ctx, s, user)
	case strings.HasPrefix(data, cbPlan):
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.startPurchase(ctx, s, user, strings.TrimPrefix(data, cbPlan))
	case strings.HasPrefix(data, cbPaid):
		if msg := bh.claimPaid(ctx, s, user, strings.TrimPrefix(data, cbPaid)); msg != "" {
			bh.answerCallbackAlert(ctx, s, cq.ID, msg)
			return
		}
		bh.answerCallback(ctx, s, cq.ID, "Sent for confirmation")
	case strings.HasPrefix(data, cbConfirm):
		bh.answerCallback(ctx, s, cq.ID, "")
		bh.confirm(ctx, s, user, strings.TrimPrefix(data, cbConfirm))
	default:
		bh.answerCallbackAlert(ctx, s, cq.ID, "Unknown button")
	}
}
