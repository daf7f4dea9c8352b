package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/dispatch"
	"github.com/poll-miniapp/backend/pkg/queue"
)

// claimBatch is how many due jobs one tick claims.
const claimBatch = 10

// JobQueue is the part of queue.Queue the processor uses.
type JobQueue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// BatchRunner runs a quiz batch; satisfied by *dispatch.Dispatcher.
type BatchRunner interface {
	Run(ctx context.Context, b dispatch.Batch) (*dispatch.Manifest, error)
}

// DispatchProcessor runs scheduled quiz dispatch jobs once they are due.
type DispatchProcessor struct {
	queue    JobQueue
	runner   BatchRunner
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewDispatchProcessor creates a processor polling the queue every interval.
func NewDispatchProcessor(q JobQueue, runner BatchRunner, interval time.Duration, logger *zap.Logger) *DispatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &DispatchProcessor{queue: q, runner: runner, interval: interval, now: time.Now, logger: logger}
}

// Process executes one dispatch job. An error means nothing was sent and the job may be retried.
func (p *DispatchProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeQuizDispatch {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var batch dispatch.Batch
	if err := json.Unmarshal(job.Payload, &batch); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	m, err := p.runner.Run(ctx, batch)
	if err != nil {
		return err
	}
	if m.AllFailed() {
		// Telegram already refused every question; sending again would not help.
		p.logger.Warn("scheduled quiz failed for every question",
			zap.String("job_id", job.ID), zap.String("chat_id", batch.ChatID), zap.Any("failures", m.Failures))
		return nil
	}
	p.logger.Info("scheduled quiz dispatched",
		zap.String("job_id", job.ID), zap.String("quiz_id", m.QuizID.String()),
		zap.Int("created", len(m.Created)), zap.Int("failed", len(m.Failures)))
	return nil
}

// Tick claims due jobs and processes them, retrying failures. It returns the number claimed.
func (p *DispatchProcessor) Tick(ctx context.Context) int {
	jobs, err := p.queue.Due(ctx, p.now(), claimBatch)
	if err != nil {
		p.logger.Warn("claim due jobs", zap.Error(err))
		return 0
	}
	for _, job := range jobs {
		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
		}
	}
	return len(jobs)
}

// Run starts the worker loop until ctx is done.
func (p *DispatchProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		// Drain everything due before sleeping again.
		for p.Tick(ctx) == claimBatch {
		}
		select {
		case <-ctx.Done():
			p.logger.Info("dispatch worker stopping")
			return
		case <-ticker.C:
		}
	}
}

// Scheduler adapts the queue to the quiz endpoint's scheduling needs.
type Scheduler struct {
	queue interface {
		Schedule(ctx context.Context, typ queue.JobType, payload interface{}, runAt time.Time) (string, error)
	}
}

// NewScheduler wraps q.
func NewScheduler(q *queue.Queue) *Scheduler {
	return &Scheduler{queue: q}
}

// ScheduleDispatch defers batch until at.
func (s *Scheduler) ScheduleDispatch(ctx context.Context, b dispatch.Batch, at time.Time) (string, error) {
	return s.queue.Schedule(ctx, queue.JobTypeQuizDispatch, b, at)
}
