package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/keylock"
	"github.com/BatmanBruc/bat-bot-leecher/internal/payment"
	"github.com/BatmanBruc/bat-bot-leecher/internal/plans"
	"github.com/BatmanBruc/bat-bot-leecher/internal/scheduler"
	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
	"github.com/BatmanBruc/bat-bot-leecher/store"
)

const (
	userID     int64 = 501
	operatorID int64 = 900
	channelID  int64 = -1001
)

type outgoing struct {
	chatID int64
	text   string
	markup models.ReplyMarkup
	edit   bool
}

type fakeSender struct {
	mu      sync.Mutex
	out     []outgoing
	answers []string
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outgoing{chatID: p.ChatID.(int64), text: p.Text, markup: p.ReplyMarkup})
	return &models.Message{ID: 100 + len(f.out)}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outgoing{chatID: p.ChatID.(int64), text: p.Text, markup: p.ReplyMarkup, edit: true})
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return true, nil
}

func (f *fakeSender) last() outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return outgoing{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeSender) to(chatID int64) []outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []outgoing
	for _, o := range f.out {
		if o.chatID == chatID {
			res = append(res, o)
		}
	}
	return res
}

type fakeQueue struct {
	jobs []*scheduler.Job
	err  error
	pos  int
}

func (q *fakeQueue) Enqueue(job *scheduler.Job) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.jobs = append(q.jobs, job)
	return q.pos, nil
}

type env struct {
	h      *Handlers
	access *entitlement.Service
	sender *fakeSender
	queue  *fakeQueue
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	locks := keylock.New()
	tokens := token.NewService(st, locks, nil, token.Config{ValidityHours: 24, Link: token.DeepLink("leech_bot")})
	payments := payment.NewService(st, locks, plans.Default(), payment.UPI{}, payment.Config{Payee: "pay@upi"})
	access := entitlement.NewService(st, locks, tokens, payments, entitlement.NewOperators(operatorID), entitlement.Config{FreeQuota: 3, PendingLimit: 1})
	q := &fakeQueue{}
	h := NewHandlers(access, tokens, payments, q, Options{UPIID: "pay@upi", PaymentChannel: channelID, ShortenerName: "arolinks.com"})
	return &env{h: h, access: access, sender: &fakeSender{}, queue: q}
}

func (e *env) command(from int64, text string) {
	ctx := contextkeys.WithUser(context.Background(), contextkeys.User{ID: from, ChatID: from, Username: "u"})
	ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	e.h.Handle(ctx, e.sender, &models.Update{Message: &models.Message{Text: text}})
}

func (e *env) click(from int64, data string) {
	ctx := contextkeys.WithUser(context.Background(), contextkeys.User{ID: from, ChatID: from, Username: "u"})
	ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
	ctx = contextkeys.WithCallbackData(ctx, data)
	e.h.Handle(ctx, e.sender, &models.Update{CallbackQuery: &models.CallbackQuery{ID: "cb", Data: data, From: models.User{ID: from}}})
}

func (e *env) share(from int64, link string) {
	ctx := contextkeys.WithUser(context.Background(), contextkeys.User{ID: from, ChatID: from})
	ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeShareLink)
	ctx = contextkeys.WithShareLink(ctx, link)
	e.h.Handle(ctx, e.sender, &models.Update{Message: &models.Message{Text: link}})
}

func callbacks(t *testing.T, markup models.ReplyMarkup) []string {
	t.Helper()
	kb, ok := markup.(models.InlineKeyboardMarkup)
	require.True(t, ok, "expected an inline keyboard")
	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			data = append(data, b.CallbackData)
		}
	}
	return data
}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("/Start@leech_bot verify_1_abc")
	assert.Equal(t, "start", cmd)
	assert.Equal(t, []string{"verify_1_abc"}, args)

	cmd, _ = parseCommand("hello")
	assert.Empty(t, cmd)
}

func TestStartShowsAccessOptions(t *testing.T) {
	e := newEnv(t)
	e.command(userID, "/start")

	out := e.sender.last()
	assert.Contains(t, out.text, "3 free downloads")
	assert.Equal(t, []string{cbBuy, cbVerify, cbStats}, callbacks(t, out.markup))
}

func TestShareLinkQueuedUntilQuotaSpent(t *testing.T) {
	e := newEnv(t)
	const link = "https://terabox.com/s/1abc"

	e.share(userID, link)
	require.Len(t, e.queue.jobs, 1)
	job := e.queue.jobs[0]
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, link, job.Link)
	assert.NotZero(t, job.MessageID)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.access.IncrementDownload(userID, 1, "f"))
	}
	e.share(userID, link)
	assert.Len(t, e.queue.jobs, 1, "denied users are not queued")
	out := e.sender.last()
	assert.Contains(t, out.text, "Download access required")
	assert.Contains(t, out.text, "arolinks.com")
	assert.Equal(t, []string{cbBuy, cbVerify, cbStats}, callbacks(t, out.markup))
}

func TestShareLinkQueueFull(t *testing.T) {
	e := newEnv(t)
	e.queue.err = scheduler.ErrQueueFull
	e.share(userID, "https://terabox.com/s/1abc")

	out := e.sender.last()
	assert.True(t, out.edit)
	assert.Contains(t, out.text, "queue is full")
}

var verifyToken = regexp.MustCompile(`start=verify_(\d+)_([0-9a-f]+)`)

func TestVerifyThroughDeepLink(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.access.IncrementDownload(userID, 1, "f"))
	}

	e.command(userID, "/verify")
	m := verifyToken.FindStringSubmatch(e.sender.last().text)
	require.NotNil(t, m, "deep link in the reply")
	assert.Equal(t, fmt.Sprint(userID), m[1])

	e.command(userID+1, "/start verify_"+m[1]+"_"+m[2])
	assert.Contains(t, e.sender.last().text, "Verification failed", "payload for another user is refused")

	e.command(userID, "/start verify_"+m[1]+"_"+m[2])
	assert.Contains(t, e.sender.last().text, "Verified!")
	ok, err := e.access.CanDownload(userID)
	require.NoError(t, err)
	assert.True(t, ok)

	e.command(userID, "/verify "+m[2])
	assert.Contains(t, e.sender.last().text, "Verification failed", "tokens redeem once")
}

func TestPurchaseClaimAndConfirm(t *testing.T) {
	e := newEnv(t)

	e.click(userID, cbBuy)
	assert.Equal(t, []string{"plan_2h", "plan_6h", "plan_12h", "plan_24h"}, callbacks(t, e.sender.last().markup))

	e.click(userID, "plan_6h")
	req := e.sender.last()
	require.Contains(t, req.text, "Payment request")
	data := callbacks(t, req.markup)
	require.Len(t, data, 1)
	require.True(t, strings.HasPrefix(data[0], cbPaid))
	paymentID := strings.TrimPrefix(data[0], cbPaid)
	assert.Contains(t, req.text, paymentID)
	assert.Contains(t, req.text, "upi://pay?pa=pay@upi")

	e.click(userID, "plan_2h")
	assert.Contains(t, e.sender.last().text, "pending payment")

	e.click(userID, cbPaid+paymentID)
	notices := e.sender.to(channelID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].text, "/confirm "+paymentID)
	assert.Equal(t, []string{cbConfirm + paymentID}, callbacks(t, notices[0].markup))

	e.command(userID, "/confirm "+paymentID)
	assert.Contains(t, e.sender.last().text, "operators only")

	e.command(operatorID, "/confirm "+strings.ToLower(paymentID))
	assert.Contains(t, e.sender.to(operatorID)[0].text, "confirmed for user")
	assert.Contains(t, e.sender.last().text, "Premium activated")
	assert.Equal(t, userID, e.sender.last().chatID)

	e.click(operatorID, cbConfirm+paymentID)
	assert.Contains(t, e.sender.last().text, "already confirmed")

	e.command(userID, "/buy")
	assert.Contains(t, e.sender.last().text, "already active")

	e.command(userID, "/premium")
	assert.Contains(t, e.sender.last().text, "Premium active")
}

func TestClaimForeignPaymentIsRejected(t *testing.T) {
	e := newEnv(t)
	e.click(userID, "plan_2h")
	paymentID := strings.TrimPrefix(callbacks(t, e.sender.last().markup)[0], cbPaid)

	e.click(userID+1, cbPaid+paymentID)
	assert.Empty(t, e.sender.to(channelID))
	assert.Equal(t, "Payment not found", e.sender.answers[len(e.sender.answers)-1])
}

func TestConfirmErrors(t *testing.T) {
	e := newEnv(t)

	e.command(operatorID, "/confirm")
	assert.Contains(t, e.sender.last().text, "Usage")

	e.command(operatorID, "/confirm nothex!!")
	assert.Contains(t, e.sender.last().text, "invalid payment id")

	e.command(operatorID, "/confirm ABCDEF12")
	assert.Contains(t, e.sender.last().text, "payment not found")
}

func TestStatsAndUnknownCommand(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.access.IncrementDownload(userID, 1, "f"))

	e.click(userID, cbStats)
	assert.Contains(t, e.sender.last().text, "Free left:</b> 2 of 3")

	e.command(userID, "/frobnicate")
	assert.Contains(t, e.sender.last().text, "Unknown command")
}
