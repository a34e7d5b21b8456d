// Package scheduler runs granted downloads on a fixed pool of workers and
// keeps each user's status message in step with the queue.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/fetcher"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/internal/metrics"
)

var (
	ErrQueueFull  = errors.New("download queue is full")
	ErrNotRunning = errors.New("scheduler is not running")
)

const (
	DefaultMaxFileSize    int64 = 3 * 1024 * 1024 * 1024 / 2 // 1.5GB
	DefaultPremiumMaxSize int64 = 5 * 1024 * 1024 * 1024 / 2 // 2.5GB
)

// Messenger is the part of *bot.Bot the workers use.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

type Entitlements interface {
	CanDownload(userID int64) (bool, error)
	IncrementDownload(userID int64, fileSize int64, fileName string) error
	Status(userID int64) (entitlement.Status, error)
}

type Job struct {
	ID     string
	UserID int64
	ChatID int64
	// MessageID is the status message edited as the job progresses; zero
	// means progress is not reported.
	MessageID int
	Link      string
}

type Config struct {
	Workers        int
	QueueSize      int
	MaxFileSize    int64
	PremiumMaxSize int64
	// SaveChannel receives a copy of every delivered file when set.
	SaveChannel int64
	JobTimeout  time.Duration
}

type Scheduler struct {
	fetcher     fetcher.Fetcher
	access      Entitlements
	botClient   Messenger
	workers     int
	maxSize     int64
	premiumSize int64
	saveChannel int64
	jobTimeout  time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	queue      chan *Job
	inFlight   map[string]*inFlightEntry
	inFlightMu sync.Mutex
}

type inFlightEntry struct {
	job      *Job
	position int
}

func NewScheduler(f fetcher.Fetcher, access Entitlements, botClient Messenger, config Config) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 10
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.PremiumMaxSize <= 0 {
		config.PremiumMaxSize = DefaultPremiumMaxSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		fetcher:     f,
		access:      access,
		botClient:   botClient,
		workers:     config.Workers,
		maxSize:     config.MaxFileSize,
		premiumSize: config.PremiumMaxSize,
		saveChannel: config.SaveChannel,
		jobTimeout:  config.JobTimeout,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan *Job, config.QueueSize),
		inFlight:    make(map[string]*inFlightEntry),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	log.Info().Int("workers", s.workers).Int("queue", cap(s.queue)).Msg("Download scheduler started")
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info().Msg("Stopping download scheduler...")
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Download scheduler stopped")
}

// Run starts the workers and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Enqueue adds a job and returns its queue position; zero means a worker is
// free to take it now.
func (s *Scheduler) Enqueue(job *Job) (int, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return 0, ErrNotRunning
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	s.inFlightMu.Lock()
	busy, maxPos := 0, 0
	for _, e := range s.inFlight {
		if e.position == 0 {
			busy++
			continue
		}
		if e.position > maxPos {
			maxPos = e.position
		}
	}
	position := 0
	if busy >= s.workers {
		position = maxPos + 1
	}

	select {
	case s.queue <- job:
	default:
		s.inFlightMu.Unlock()
		metrics.DownloadsTotal.WithLabelValues("rejected").Inc()
		return 0, ErrQueueFull
	}
	s.inFlight[job.ID] = &inFlightEntry{job: job, position: position}
	s.inFlightMu.Unlock()

	metrics.DownloadsTotal.WithLabelValues("queued").Inc()
	metrics.DownloadQueueDepth.Inc()
	return position, nil
}

// Pending reports jobs accepted but not yet finished.
func (s *Scheduler) Pending() int {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			log.Debug().Int("worker", id).Msg("Worker stopped")
			return
		case job := <-s.queue:
			metrics.DownloadQueueDepth.Dec()
			s.markRunning(job.ID)

			if err := s.process(job); err != nil {
				metrics.DownloadsTotal.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Int("worker", id).Str("job", job.ID).Int64("user_id", job.UserID).Msg("Download failed")
			} else {
				metrics.DownloadsTotal.WithLabelValues("done").Inc()
			}

			s.inFlightMu.Lock()
			delete(s.inFlight, job.ID)
			s.inFlightMu.Unlock()

			s.decrementQueueAndUpdateMessages()
		}
	}
}

// markRunning drops a job to position zero once a worker owns it, which
// may be ahead of its estimate when another worker finished early.
func (s *Scheduler) markRunning(jobID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if e, ok := s.inFlight[jobID]; ok {
		e.position = 0
	}
}

func (s *Scheduler) decrementQueueAndUpdateMessages() {
	type upd struct {
		chatID    int64
		messageID int
		text      string
	}
	var updates []upd

	s.inFlightMu.Lock()
	for _, e := range s.inFlight {
		if e.position == 0 {
			continue
		}
		e.position--
		if e.position == 0 || e.job.ChatID == 0 || e.job.MessageID == 0 {
			continue
		}
		updates = append(updates, upd{e.job.ChatID, e.job.MessageID, messages.QueueQueued(e.job.Link, e.position)})
	}
	s.inFlightMu.Unlock()

	if len(updates) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	for _, u := range updates {
		if err := s.edit(ctx, u.chatID, u.messageID, u.text); err != nil {
			log.Debug().Err(err).Int64("chat_id", u.chatID).Msg("Queue update failed")
		}
	}
}

func (s *Scheduler) process(job *Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	s.report(ctx, job, messages.QueueStarted(job.Link))

	file, err := s.fetcher.Resolve(ctx, job.Link)
	if err != nil {
		s.report(ctx, job, messages.ErrorFetchFailed(err))
		return err
	}

	st, err := s.access.Status(job.UserID)
	if err != nil {
		s.report(ctx, job, messages.ErrorDefault())
		return err
	}
	limit := s.maxSize
	if st.Premium() {
		limit = s.premiumSize
	}
	if file.Size > limit {
		s.report(ctx, job, messages.FileTooLarge(file.Size, limit, st.Premium()))
		return nil
	}

	// Re-check and count back to back so queued jobs cannot outrun the quota.
	ok, err := s.access.CanDownload(job.UserID)
	if err != nil {
		s.report(ctx, job, messages.ErrorDefault())
		return err
	}
	if !ok {
		s.report(ctx, job, messages.AccessLost())
		return nil
	}
	if err := s.access.IncrementDownload(job.UserID, file.Size, file.Name); err != nil {
		s.report(ctx, job, messages.ErrorDefault())
		return err
	}

	s.report(ctx, job, messages.Downloading(file.Name, file.Size))
	msg, err := s.sendFile(ctx, job.ChatID, file, st.Premium())
	if err != nil {
		s.report(ctx, job, messages.ErrorUploadFailed(file.Name))
		return err
	}

	if s.saveChannel != 0 && msg != nil && msg.Document != nil {
		_, err := s.botClient.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:    s.saveChannel,
			Document:  &models.InputFileString{Data: msg.Document.FileID},
			Caption:   messages.FileLine(file.Name) + "\n📊 " + messages.Size(file.Size),
			ParseMode: messages.ParseModeHTML,
		})
		if err != nil {
			log.Warn().Err(err).Int64("channel", s.saveChannel).Msg("Failed to copy file to save channel")
		}
	}

	if after, err := s.access.Status(job.UserID); err == nil {
		s.report(ctx, job, messages.DownloadCompleted(after))
	}
	log.Info().Str("job", job.ID).Int64("user_id", job.UserID).Str("file", file.Name).Int64("size", file.Size).Msg("Download delivered")
	return nil
}

func (s *Scheduler) sendFile(ctx context.Context, chatID int64, file *fetcher.File, premium bool) (*models.Message, error) {
	body, err := s.fetcher.Open(ctx, file)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return s.botClient.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: file.Name,
			Data:     body,
		},
		Caption:   messages.DocumentCaption(file.Name, file.Size, string(file.Kind), premium),
		ParseMode: messages.ParseModeHTML,
	})
}

// report edits the status message, or sends a new one when there is none.
func (s *Scheduler) report(ctx context.Context, job *Job, text string) {
	var err error
	if job.MessageID != 0 {
		err = s.edit(ctx, job.ChatID, job.MessageID, text)
	} else {
		_, err = s.botClient.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    job.ChatID,
			Text:      text,
			ParseMode: messages.ParseModeHTML,
		})
	}
	if err != nil {
		log.Debug().Err(err).Int64("chat_id", job.ChatID).Msg("Status update failed")
	}
}

func (s *Scheduler) edit(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := s.botClient.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return err
}
