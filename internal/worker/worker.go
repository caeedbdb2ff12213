package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/financebro/backend/internal/interview"
	"github.com/financebro/backend/pkg/queue"
	"github.com/financebro/backend/pkg/storage"
)

// Processor executes interview post-processing jobs: archiving conversation
// logs to S3 and repairing completed sessions left without a feedback row.
type Processor struct {
	repo   *interview.Repository
	scorer interview.Scorer
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates an interview job processor. s3 may be nil when object
// storage is not configured; transcript jobs then fail and retry into the DLQ.
func NewProcessor(repo *interview.Repository, scorer interview.Scorer, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, scorer: scorer, s3: s3, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeTranscriptArchive:
		return p.processTranscriptArchive(ctx, job)
	case queue.JobTypeFeedbackRepair:
		return p.processFeedbackRepair(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processTranscriptArchive(ctx context.Context, job *queue.Job) error {
	var payload queue.TranscriptArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.s3 == nil {
		return fmt.Errorf("object storage not configured")
	}

	session, err := p.repo.GetSession(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("session not found: %s", payload.SessionID)
	}
	if session.TranscriptKey != nil && *session.TranscriptKey != "" {
		p.logger.Info("transcript already archived", zap.String("session_id", session.ID.String()))
		return nil
	}

	key := storage.TranscriptKey(payload.SessionID.String())
	if _, err := p.s3.Upload(ctx, p.s3.TranscriptsBucket(), key, "application/json", bytes.NewReader(payload.ConversationLog)); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.repo.SetTranscriptKey(ctx, payload.SessionID, key); err != nil {
		p.logger.Error("set transcript key failed", zap.Error(err), zap.String("session_id", payload.SessionID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("transcript archived", zap.String("session_id", payload.SessionID.String()), zap.String("s3_key", key))
	return nil
}

func (p *Processor) processFeedbackRepair(ctx context.Context, job *queue.Job) error {
	var payload queue.FeedbackRepairPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	session, err := p.repo.GetSession(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("session not found: %s", payload.SessionID)
	}

	// A repaired report has no pacing data, so synthesize over no questions.
	feedbackID, err := p.repo.InsertFeedbackOnly(ctx, payload.SessionID, p.scorer.Synthesize(session, nil))
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	p.logger.Info("feedback repaired",
		zap.String("session_id", payload.SessionID.String()),
		zap.String("feedback_id", feedbackID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("interview worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// ScanAndEnqueueRepairs finds completed sessions older than olderThan with no
// feedback row and enqueues a repair job for each. Run periodically.
func (p *Processor) ScanAndEnqueueRepairs(ctx context.Context, olderThan time.Duration) error {
	ids, err := p.repo.FindCompletedWithoutFeedback(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	for _, id := range ids {
		if err := p.queue.EnqueueFeedbackRepair(ctx, queue.FeedbackRepairPayload{SessionID: id}); err != nil {
			p.logger.Warn("enqueue repair failed", zap.Error(err), zap.String("session_id", id.String()))
		}
	}
	if len(ids) > 0 {
		p.logger.Info("feedback repairs enqueued", zap.Int("count", len(ids)))
	}
	return nil
}

// RunRepairScanner loops ScanAndEnqueueRepairs on an interval until ctx is done.
func (p *Processor) RunRepairScanner(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ScanAndEnqueueRepairs(ctx, olderThan); err != nil {
				p.logger.Warn("repair scan failed", zap.Error(err))
			}
		}
	}
}
