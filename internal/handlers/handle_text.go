package handlers

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-leecher/internal/messages"
	"github.com/BatmanBruc/bat-bot-leecher/internal/scheduler"
)

// HandleShareLink gates a download on the entitlement check and queues it.
// Counting happens in the worker right before the file is sent.
func (bh *Handlers) HandleShareLink(ctx context.Context, s Sender, user contextkeys.User, link string) {
	ok, err := bh.access.CanDownload(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Entitlement check failed")
		bh.reply(ctx, s, user.ChatID, messages.ErrorDefault(), nil)
		return
	}
	if !ok {
		bh.reply(ctx, s, user.ChatID, messages.AccessRequired(bh.access.FreeQuota(), bh.tokens.ValidityHours(), bh.opts.ShortenerName), accessKeyboard())
		return
	}

	status := bh.reply(ctx, s, user.ChatID, messages.QueueStarted(link), nil)
	job := &scheduler.Job{UserID: user.ID, ChatID: user.ChatID, Link: link}
	if status != nil {
		job.MessageID = status.ID
	}

	position, err := bh.downloads.Enqueue(job)
	if err != nil {
		text := messages.QueueFull()
		if !errors.Is(err, scheduler.ErrQueueFull) {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to enqueue download")
			text = messages.ErrorDefault()
		}
		bh.status(ctx, s, job, text)
		return
	}
	if position > 0 {
		bh.status(ctx, s, job, messages.QueueQueued(link, position))
	}
}

func (bh *Handlers) status(ctx context.Context, s Sender, job *scheduler.Job, text string) {
	if job.MessageID != 0 {
		bh.edit(ctx, s, job.ChatID, job.MessageID, text, nil)
		return
	}
	bh.reply(ctx, s, job.ChatID, text, nil)
}
