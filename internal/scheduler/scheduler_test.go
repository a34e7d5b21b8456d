package scheduler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/fetcher"
)

type sentDoc struct {
	chatID int64
	name   string
	body   string
	fileID string
}

type fakeMessenger struct {
	mu    sync.Mutex
	texts []string
	docs  []sentDoc
}

func (m *fakeMessenger) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, p.Text)
	return &models.Message{ID: len(m.texts)}, nil
}

func (m *fakeMessenger) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, p.Text)
	return &models.Message{ID: p.MessageID}, nil
}

func (m *fakeMessenger) SendDocument(_ context.Context, p *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := sentDoc{chatID: p.ChatID.(int64)}
	switch f := p.Document.(type) {
	case *models.InputFileUpload:
		b, _ := io.ReadAll(f.Data)
		d.name, d.body = f.Filename, string(b)
	case *models.InputFileString:
		d.fileID = f.Data
	}
	m.docs = append(m.docs, d)
	return &models.Message{Document: &models.Document{FileID: "file-id-1"}}, nil
}

func (m *fakeMessenger) snapshot() ([]string, []sentDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...), append([]sentDoc(nil), m.docs...)
}

func (m *fakeMessenger) lastText() string {
	texts, _ := m.snapshot()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeFetcher struct {
	files map[string]*fetcher.File
	gate  chan struct{}
	seen  chan string
}

func (f *fakeFetcher) Resolve(ctx context.Context, link string) (*fetcher.File, error) {
	if f.seen != nil {
		f.seen <- link
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	file, ok := f.files[link]
	if !ok {
		return nil, fetcher.ErrFileNotFound
	}
	return file, nil
}

func (f *fakeFetcher) Open(_ context.Context, file *fetcher.File) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("content of " + file.Name)), nil
}

type fakeAccess struct {
	mu        sync.Mutex
	allowed   bool
	premium   bool
	counted   []string
	statusErr error
}

func (a *fakeAccess) CanDownload(int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allowed, nil
}

func (a *fakeAccess) IncrementDownload(_ int64, _ int64, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counted = append(a.counted, name)
	return nil
}

func (a *fakeAccess) Status(userID int64) (entitlement.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.statusErr != nil {
		return entitlement.Status{}, a.statusErr
	}
	st := entitlement.Status{UserID: userID, FreeQuota: 3, FreeRemaining: 3 - len(a.counted)}
	if a.premium {
		st.Subscription = &entitlement.ActiveSubscription{Remaining: time.Hour}
	}
	return st, nil
}

func (a *fakeAccess) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.counted)
}

const link = "https://terabox.com/s/1abc"

func newTestScheduler(t *testing.T, f *fakeFetcher, a *fakeAccess, cfg Config) (*Scheduler, *fakeMessenger) {
	t.Helper()
	m := &fakeMessenger{}
	s := NewScheduler(f, a, m, cfg)
	s.Start()
	t.Cleanup(s.Stop)
	return s, m
}

func TestDeliversFileAndCountsDownload(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{link: {Name: "clip.mp4", Size: 1024, Kind: fetcher.KindVideo, URL: "x"}}}
	a := &fakeAccess{allowed: true}
	s, m := newTestScheduler(t, f, a, Config{Workers: 1, SaveChannel: -100})

	pos, err := s.Enqueue(&Job{UserID: 7, ChatID: 7, MessageID: 10, Link: link})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	require.Eventually(t, func() bool { return s.Pending() == 0 && a.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, docs := m.snapshot()
	require.Len(t, docs, 2)
	assert.Equal(t, int64(7), docs[0].chatID)
	assert.Equal(t, "clip.mp4", docs[0].name)
	assert.Equal(t, "content of clip.mp4", docs[0].body)
	assert.Equal(t, int64(-100), docs[1].chatID)
	assert.Equal(t, "file-id-1", docs[1].fileID)
	assert.Contains(t, m.lastText(), "Download completed")
	assert.Equal(t, []string{"clip.mp4"}, a.counted)
}

func TestRejectsOversizedFileWithoutCounting(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{link: {Name: "big.mkv", Size: 2048}}}
	a := &fakeAccess{allowed: true}
	s, m := newTestScheduler(t, f, a, Config{Workers: 1, MaxFileSize: 1024, PremiumMaxSize: 4096})

	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, MessageID: 2, Link: link})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, m.lastText(), "File too large")
	assert.Zero(t, a.count())
	_, docs := m.snapshot()
	assert.Empty(t, docs)
}

func TestPremiumGetsLargerLimit(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{link: {Name: "big.mkv", Size: 2048}}}
	a := &fakeAccess{allowed: true, premium: true}
	s, _ := newTestScheduler(t, f, a, Config{Workers: 1, MaxFileSize: 1024, PremiumMaxSize: 4096})

	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, Link: link})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, a.count())
}

func TestRechecksAccessBeforeCounting(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{link: {Name: "a.zip", Size: 1}}}
	a := &fakeAccess{allowed: false}
	s, m := newTestScheduler(t, f, a, Config{Workers: 1})

	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, MessageID: 5, Link: link})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, m.lastText(), "Access ended")
	assert.Zero(t, a.count())
}

func TestFetchFailureIsReported(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{}}
	a := &fakeAccess{allowed: true}
	s, m := newTestScheduler(t, f, a, Config{Workers: 1})

	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, Link: link})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, m.lastText(), "Could not fetch")
	assert.Zero(t, a.count())
}

func TestStatusErrorAbortsJob(t *testing.T) {
	f := &fakeFetcher{files: map[string]*fetcher.File{link: {Name: "a.zip", Size: 1}}}
	a := &fakeAccess{allowed: true, statusErr: errors.New("store down")}
	s, m := newTestScheduler(t, f, a, Config{Workers: 1})

	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, Link: link})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.lastText(), "Something went wrong")
	assert.Zero(t, a.count())
}

func TestQueuePositionsAndBackpressure(t *testing.T) {
	f := &fakeFetcher{
		files: map[string]*fetcher.File{link: {Name: "a.zip", Size: 1}},
		gate:  make(chan struct{}),
		seen:  make(chan string, 4),
	}
	a := &fakeAccess{allowed: true}
	s, _ := newTestScheduler(t, f, a, Config{Workers: 1, QueueSize: 1})

	pos, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, Link: link})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	select {
	case <-f.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first job")
	}

	pos, err = s.Enqueue(&Job{UserID: 2, ChatID: 2, Link: link})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = s.Enqueue(&Job{UserID: 3, ChatID: 3, Link: link})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(f.gate)
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, a.count())
}

func TestEnqueueRequiresRunningScheduler(t *testing.T) {
	s := NewScheduler(&fakeFetcher{}, &fakeAccess{}, &fakeMessenger{}, Config{})
	_, err := s.Enqueue(&Job{UserID: 1, ChatID: 1, Link: link})
	assert.ErrorIs(t, err, ErrNotRunning)
}
