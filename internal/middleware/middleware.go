package middleware

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/fetcher"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

type Middlewares struct {
	store types.StateStore
}

func NewMessageAnalyzer(store types.StateStore) *Middlewares {
	return &Middlewares{
		store: store,
	}
}

// IdentifyUserMiddleware drops updates without a sender, registers first
// contact in the store and puts the sender into the context.
func (m *Middlewares) IdentifyUserMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		u, ok := userFromUpdate(update)
		if !ok {
			return
		}

		if m.store != nil {
			if _, err := m.store.GetOrCreateUser(u.ID); err != nil {
				log.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to load user")
				if b != nil {
					_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID:    u.ChatID,
						Text:      messages.ErrorDefault(),
						ParseMode: messages.ParseModeHTML,
					})
				}
				return
			}
		}

		next(contextkeys.WithUser(ctx, u), b, update)
	}
}

func userFromUpdate(update *models.Update) (contextkeys.User, bool) {
	var u contextkeys.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		u.ID = update.Message.From.ID
		u.Username = update.Message.From.Username
		u.ChatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		u.ID = update.CallbackQuery.From.ID
		u.Username = update.CallbackQuery.From.Username
		u.ChatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
		if u.ChatID == 0 {
			u.ChatID = u.ID
		}
	default:
		return u, false
	}
	return u, u.ID != 0 && u.ChatID != 0
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
			ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
			next(ctx, b, update)
			return
		}
		next(analyzeMessage(ctx, update), b, update)
	}
}

func analyzeMessage(ctx context.Context, update *models.Update) context.Context {
	if update.Message == nil {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		text = strings.TrimSpace(update.Message.Caption)
	}
	switch {
	case strings.HasPrefix(text, "/"):
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	case text == "":
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
	}
	if link, ok := fetcher.FindShareLink(text); ok {
		ctx = contextkeys.WithShareLink(ctx, link)
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeShareLink)
	}
	return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeText)
}

// RecoverMiddleware keeps one bad update from taking the bot down.
func RecoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Int64("update_id", update.ID).Bytes("stack", debug.Stack()).Msg("Handler panicked")
			}
		}()
		next(ctx, b, update)
	}
}
