package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/metrics"
	"github.com/studymeta/backend/pkg/queue"
)

// LectureStore applies video fields to a lecture unless it was written after since.
type LectureStore interface {
	SetVideoIfUnchanged(ctx context.Context, id uuid.UUID, videoPath string, durationMinutes *int, since time.Time) error
}

// JobSource is the queue side the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LectureSyncProcessor re-applies lecture video metadata that failed to persist after transcoding.
type LectureSyncProcessor struct {
	lectures LectureStore
	queue    JobSource
	metrics  *metrics.Metrics
	logger   *zap.Logger
	backoff  time.Duration
}

// NewLectureSyncProcessor creates a reconciliation processor.
func NewLectureSyncProcessor(lectures LectureStore, q JobSource, m *metrics.Metrics, logger *zap.Logger) *LectureSyncProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LectureSyncProcessor{lectures: lectures, queue: q, metrics: m, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one lecture sync job.
func (p *LectureSyncProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLectureVideoSync {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LectureVideoSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.LectureID == uuid.Nil || payload.VideoPath == "" {
		return fmt.Errorf("incomplete payload for job %s", job.ID)
	}

	since := payload.ObservedAt
	if since.IsZero() {
		since = job.CreatedAt
	}
	err := p.lectures.SetVideoIfUnchanged(ctx, payload.LectureID, payload.VideoPath, payload.DurationMinutes, since)
	if errors.Is(err, errs.ErrConflict) {
		// A later upload or webhook already decided this lecture's video.
		p.logger.Info("lecture changed since upload, dropping sync job",
			zap.String("job_id", job.ID),
			zap.String("lecture_id", payload.LectureID.String()),
			zap.String("video_path", payload.VideoPath),
		)
		p.metrics.Reconcile("superseded")
		return nil
	}
	if errors.Is(err, errs.ErrNotFound) {
		// Lecture deleted since the upload; nothing left to reconcile.
		p.logger.Warn("lecture gone, dropping sync job",
			zap.String("job_id", job.ID),
			zap.String("lecture_id", payload.LectureID.String()),
		)
		p.metrics.Reconcile("dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}

	p.metrics.Reconcile(metrics.OutcomeSuccess)
	p.logger.Info("lecture video reconciled",
		zap.String("lecture_id", payload.LectureID.String()),
		zap.String("video_path", payload.VideoPath),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *LectureSyncProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("lecture sync worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
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
			p.metrics.Reconcile(metrics.OutcomeFailed)
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *LectureSyncProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
