package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/store"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

func textUpdate(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		From: &models.User{ID: 42, Username: "alice"},
		Chat: models.Chat{ID: 42},
	}}
}

func capture(t *testing.T, h func(next bot.HandlerFunc) bot.HandlerFunc, update *models.Update) (context.Context, bool) {
	t.Helper()
	var (
		got    context.Context
		called bool
	)
	h(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got, called = ctx, true
	})(context.Background(), nil, update)
	return got, called
}

func TestAnalyzeMessageClassifies(t *testing.T) {
	m := NewMessageAnalyzer(nil)
	cases := []struct {
		update *models.Update
		want   contextkeys.MessageType
	}{
		{textUpdate("/start"), contextkeys.MessageTypeCommand},
		{textUpdate("hello"), contextkeys.MessageTypeText},
		{textUpdate("get https://terabox.com/s/1abc please"), contextkeys.MessageTypeShareLink},
		{textUpdate(""), contextkeys.MessageTypeUnknown},
		{&models.Update{CallbackQuery: &models.CallbackQuery{Data: "buy", From: models.User{ID: 1}}}, contextkeys.MessageTypeClickButton},
	}
	for _, c := range cases {
		ctx, called := capture(t, m.AnalyzeMessageMiddleware, c.update)
		require.True(t, called)
		got, _ := contextkeys.GetMessageType(ctx)
		assert.Equal(t, c.want, got)
	}

	ctx, _ := capture(t, m.AnalyzeMessageMiddleware, textUpdate("https://terabox.com/s/1abc"))
	link, ok := contextkeys.GetShareLink(ctx)
	require.True(t, ok)
	assert.Equal(t, "https://terabox.com/s/1abc", link)

	ctx, _ = capture(t, m.AnalyzeMessageMiddleware, &models.Update{CallbackQuery: &models.CallbackQuery{Data: "plan_2h"}})
	data, _ := contextkeys.GetCallbackData(ctx)
	assert.Equal(t, "plan_2h", data)
}

func TestIdentifyUserRegistersFirstContact(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewMessageAnalyzer(st)

	ctx, called := capture(t, m.IdentifyUserMiddleware, textUpdate("hi"))
	require.True(t, called)
	u, ok := contextkeys.GetUser(ctx)
	require.True(t, ok)
	assert.Equal(t, contextkeys.User{ID: 42, ChatID: 42, Username: "alice"}, u)

	rec, err := st.GetOrCreateUser(42)
	require.NoError(t, err)
	assert.False(t, rec.JoinedAt.IsZero())
}

func TestIdentifyUserCallbackFallsBackToPrivateChat(t *testing.T) {
	m := NewMessageAnalyzer(nil)
	ctx, called := capture(t, m.IdentifyUserMiddleware, &models.Update{CallbackQuery: &models.CallbackQuery{Data: "buy", From: models.User{ID: 9}}})
	require.True(t, called)
	u, _ := contextkeys.GetUser(ctx)
	assert.Equal(t, int64(9), u.ChatID)
}

func TestIdentifyUserDropsAnonymousAndStoreFailures(t *testing.T) {
	_, called := capture(t, NewMessageAnalyzer(nil).IdentifyUserMiddleware, &models.Update{})
	assert.False(t, called)

	_, called = capture(t, NewMessageAnalyzer(brokenStore{}).IdentifyUserMiddleware, textUpdate("hi"))
	assert.False(t, called)
}

func TestRecoverMiddleware(t *testing.T) {
	assert.NotPanics(t, func() {
		RecoverMiddleware(func(context.Context, *bot.Bot, *models.Update) {
			panic("boom")
		})(context.Background(), nil, &models.Update{ID: 1})
	})
}

type brokenStore struct{ types.StateStore }

func (brokenStore) GetOrCreateUser(int64) (*types.UserRecord, error) {
	return nil, errors.New("down")
}
