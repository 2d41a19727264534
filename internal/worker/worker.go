package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/queue"
)

// JobSource is the email job queue.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogStore records delivery attempts.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// WinnerMarker stamps winners once notified.
type WinnerMarker interface {
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// EmailProcessor processes email jobs: send over SMTP, record the attempt, mark winners notified.
type EmailProcessor struct {
	mailer  Mailer
	logs    LogStore
	winners WinnerMarker
	queue   JobSource
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(mailer Mailer, logs LogStore, winners WinnerMarker, q JobSource, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		mailer:  mailer,
		logs:    logs,
		winners: winners,
		queue:   q,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.mailer.Send(ctx, payload.To, payload.Subject, payload.HTML)
	p.record(ctx, payload, sendErr)
	if sendErr != nil {
		return sendErr
	}

	if payload.WinnerID != nil && p.winners != nil {
		if err := p.winners.MarkNotified(ctx, *payload.WinnerID, p.now()); err != nil {
			p.logger.Error("mark winner notified failed", zap.String("winner_id", payload.WinnerID.String()), zap.Error(err))
		}
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("raffle_id", payload.RaffleID.String()),
	)
	return nil
}

func (p *EmailProcessor) record(ctx context.Context, payload queue.EmailPayload, sendErr error) {
	if p.logs == nil {
		return
	}
	el := &models.EmailLog{
		RaffleID:       optionalID(payload.RaffleID),
		EntryID:        optionalID(payload.EntryID),
		EmailType:      payload.EmailType,
		RecipientEmail: payload.To,
		Subject:        payload.Subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
	} else {
		at := p.now()
		el.SentAt = &at
	}
	if err := p.logs.Create(ctx, el); err != nil {
		p.logger.Error("email log write failed", zap.String("raffle_id", payload.RaffleID.String()), zap.Error(err))
	}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
