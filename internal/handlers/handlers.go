package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/internal/payment"
	"github.com/BatmanBruc/bat-bot-leecher/internal/scheduler"
	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
)

// Sender is the part of *bot.Bot the handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type DownloadEnqueuer interface {
	Enqueue(job *scheduler.Job) (int, error)
}

type Options struct {
	UPIID      string
	PaymentTTL time.Duration
	// PaymentChannel receives payment claims for operators; zero disables it.
	PaymentChannel int64
	ShortenerName  string
}

type Handlers struct {
	access    *entitlement.Service
	tokens    *token.Service
	payments  *payment.Service
	downloads DownloadEnqueuer
	opts      Options
}

func NewHandlers(access *entitlement.Service, tokens *token.Service, payments *payment.Service, downloads DownloadEnqueuer, opts Options) *Handlers {
	if opts.PaymentTTL <= 0 {
		opts.PaymentTTL = payment.DefaultTTL
	}
	return &Handlers{
		access:    access,
		tokens:    tokens,
		payments:  payments,
		downloads: downloads,
		opts:      opts,
	}
}

// MainHandler is registered with the bot behind the middleware chain.
func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	bh.Handle(ctx, b, update)
}

func (bh *Handlers) Handle(ctx context.Context, s Sender, update *models.Update) {
	user, ok := contextkeys.GetUser(ctx)
	if !ok {
		log.Error().Int64("update_id", update.ID).Msg("User not found in context")
		return
	}
	messageType, _ := contextkeys.GetMessageType(ctx)

	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, s, update, user)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, s, update, user)
	case contextkeys.MessageTypeShareLink:
		link, _ := contextkeys.GetShareLink(ctx)
		bh.HandleShareLink(ctx, s, user, link)
	case contextkeys.MessageTypeText:
		bh.reply(ctx, s, user.ChatID, messages.Help(), nil)
	}
}

func (bh *Handlers) reply(ctx context.Context, s Sender, chatID int64, text string, markup models.ReplyMarkup) *models.Message {
	msg, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return nil
	}
	return msg
}

func (bh *Handlers) edit(ctx context.Context, s Sender, chatID int64, messageID int, text string, markup models.ReplyMarkup) {
	_, err := s.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to edit message")
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, s Sender, callbackID, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
}

func (bh *Handlers) answerCallbackAlert(ctx context.Context, s Sender, callbackID, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
}
