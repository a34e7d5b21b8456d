package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// sendPlans shows the catalog, editing messageID in place when it is set.
func (bh *Handlers) sendPlans(ctx context.Context, s Sender, user contextkeys.User, messageID int) {
	active, err := bh.access.ActiveSubscription(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load subscription")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	if active != nil {
		bh.reply(ctx, s, user.ChatID, messages.AlreadyPremium(active.Remaining), nil)
		return
	}

	list := bh.payments.Catalog().List()
	if messageID != 0 {
		bh.edit(ctx, s, user.ChatID, messageID, messages.PlansMenu(list), plansKeyboard(list))
		return
	}
	bh.reply(ctx, s, user.ChatID, messages.PlansMenu(list), plansKeyboard(list))
}

func (bh *Handlers) startPurchase(ctx context.Context, s Sender, user contextkeys.User, planKey string) {
	record, err := bh.access.StartPurchase(user.ID, planKey)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrUnknownPlan):
		bh.reply(ctx, s, user.ChatID, messages.UnknownPlan(), nil)
		return
	case errors.Is(err, types.ErrActiveSubscription):
		left := bh.remaining(user.ID)
		bh.reply(ctx, s, user.ChatID, messages.AlreadyPremium(left), nil)
		return
	case errors.Is(err, types.ErrTooManyPending):
		bh.reply(ctx, s, user.ChatID, messages.TooManyPending(), nil)
		return
	default:
		log.Error().Err(err).Int64("user_id", user.ID).Str("plan", planKey).Msg("Failed to create payment request")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	bh.reply(ctx, s, user.ChatID, messages.PaymentRequest(record, bh.opts.UPIID, bh.opts.PaymentTTL), paymentKeyboard(record.ID))
}

func (bh *Handlers) remaining(userID int64) time.Duration {
	active, err := bh.access.ActiveSubscription(userID)
	if err != nil || active == nil {
		return 0
	}
	return active.Remaining
}

// claimPaid forwards the user's "I have paid" to the operator channel. It
// never settles anything itself.
func (bh *Handlers) claimPaid(ctx context.Context, s Sender, user contextkeys.User, paymentID string) string {
	record, err := bh.payments.Get(paymentID)
	if err != nil || record.UserID != user.ID {
		return "Payment not found"
	}
	switch record.Status {
	case types.PaymentCompleted:
		return "This payment is already confirmed"
	case types.PaymentExpired:
		return "This payment request has expired"
	}

	if bh.opts.PaymentChannel != 0 {
		bh.reply(ctx, s, bh.opts.PaymentChannel, messages.OperatorNotice(record, user.Username), operatorKeyboard(record.ID))
	}
	bh.reply(ctx, s, user.ChatID, messages.PaymentSubmitted(record.ID), nil)
	return ""
}

// confirm settles a payment on an operator's word and notifies the payer.
func (bh *Handlers) confirm(ctx context.Context, s Sender, operator contextkeys.User, paymentID string) {
	record, sub, err := bh.access.ConfirmPayment(operator.ID, paymentID)
	if err != nil {
		bh.reply(ctx, s, operator.ChatID, confirmError(err), nil)
		return
	}
	bh.reply(ctx, s, operator.ChatID, messages.PaymentConfirmedOperator(record), nil)
	bh.reply(ctx, s, record.UserID, messages.PaymentConfirmedUser(sub), nil)
}

func confirmError(err error) string {
	switch {
	case errors.Is(err, types.ErrNotOperator):
		return messages.NotOperator()
	case errors.Is(err, types.ErrInvalidPaymentID):
		return messages.ConfirmRejected("invalid payment id")
	case errors.Is(err, types.ErrPaymentNotFound):
		return messages.ConfirmRejected("payment not found")
	case errors.Is(err, types.ErrPaymentAlreadySettled):
		return messages.ConfirmRejected("payment already confirmed")
	case errors.Is(err, types.ErrPaymentExpired):
		return messages.ConfirmRejected("payment request expired")
	default:
		return messages.ErrorDefault()
	}
}
