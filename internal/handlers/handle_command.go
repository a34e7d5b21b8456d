package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// parseCommand splits "/cmd@bot arg1 arg2" into "cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (bh *Handlers) HandleCommand(ctx context.Context, s Sender, update *models.Update, user contextkeys.User) {
	if update.Message == nil {
		return
	}
	cmd, args := parseCommand(update.Message.Text)

	switch cmd {
	case "start":
		if len(args) > 0 {
			if payloadUser, value, ok := token.ParseStartPayload(args[0]); ok {
				if payloadUser != user.ID {
					bh.reply(ctx, s, user.ChatID, messages.VerifyFailed(), nil)
					return
				}
				bh.redeem(ctx, s, user, value)
				return
			}
		}
		bh.reply(ctx, s, user.ChatID, messages.StartWelcome(bh.access.FreeQuota(), bh.tokens.ValidityHours()), accessKeyboard())
	case "help":
		bh.reply(ctx, s, user.ChatID, messages.Help(), nil)
	case "stats":
		bh.sendStats(ctx, s, user)
	case "premium":
		bh.sendPremium(ctx, s, user)
	case "buy":
		bh.sendPlans(ctx, s, user, 0)
	case "verify":
		if len(args) > 0 {
			bh.redeem(ctx, s, user, args[0])
			return
		}
		bh.sendVerificationLink(ctx, s, user)
	case "confirm":
		if len(args) == 0 {
			bh.reply(ctx, s, user.ChatID, messages.ConfirmUsage(), nil)
			return
		}
		bh.confirm(ctx, s, user, args[0])
	default:
		bh.reply(ctx, s, user.ChatID, messages.ErrorUnknownCommand(), nil)
	}
}

func (bh *Handlers) sendStats(ctx context.Context, s Sender, user contextkeys.User) {
	st, err := bh.access.Status(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load status")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	bh.reply(ctx, s, user.ChatID, messages.Stats(st), nil)
}

func (bh *Handlers) sendPremium(ctx context.Context, s Sender, user contextkeys.User) {
	st, err := bh.access.Status(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load status")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	var markup models.ReplyMarkup
	if !st.Premium() {
		markup = buyKeyboard()
	}
	bh.reply(ctx, s, user.ChatID, messages.Premium(st), markup)
}

func (bh *Handlers) sendVerificationLink(ctx context.Context, s Sender, user contextkeys.User) {
	link, _, err := bh.tokens.IssueVerificationLink(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to issue verification link")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	bh.reply(ctx, s, user.ChatID, messages.VerifyLink(link, bh.tokens.ValidityHours()), verifyKeyboard(link))
}

func (bh *Handlers) redeem(ctx context.Context, s Sender, user contextkeys.User, value string) {
	if err := bh.access.Verify(user.ID, value); err != nil {
		if !errors.Is(err, types.ErrTokenNotRedeemable) {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to redeem token")
			bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
			return
		}
		bh.reply(ctx, s, user.ChatID, messages.VerifyFailed(), nil)
		return
	}
	left := time.Duration(bh.tokens.ValidityHours()) * time.Hour
	if st, err := bh.access.Status(user.ID); err == nil && st.Verification != nil {
		left = st.VerifiedLeft
	}
	bh.reply(ctx, s, user.ChatID, messages.VerifySuccess(left), nil)
}
