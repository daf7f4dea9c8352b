package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueScheduled is the Redis sorted set of pending jobs, scored by run-at unix millis.
	QueueScheduled = "worker:scheduled"
	// QueueDLQ is the dead-letter list for jobs that failed after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeQuizDispatch JobType = "quiz_dispatch"
)

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	RunAt     time.Time       `json:"run_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// claimDue pops up to ARGV[2] members scored <= ARGV[1]. Running it as one script keeps
// two workers from claiming the same job.
var claimDue = redis.NewScript(`
local jobs = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #jobs > 0 then
	redis.call('ZREM', KEYS[1], unpack(jobs))
end
return jobs
`)

// Queue stores delayed jobs in Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Schedule enqueues a job of typ to run at runAt and returns its id.
func (q *Queue) Schedule(ctx context.Context, typ JobType, payload interface{}, runAt time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		RunAt:     runAt,
		CreatedAt: time.Now(),
	}
	if err := q.push(ctx, &job); err != nil {
		return "", err
	}
	q.logger.Debug("scheduled job", zap.String("job_id", job.ID), zap.String("type", string(typ)), zap.Time("run_at", runAt))
	return job.ID, nil
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.ZAdd(ctx, QueueScheduled, redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: raw}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

// Due claims up to limit jobs whose run-at is not after now. Claimed jobs are removed
// from the set; callers must Retry them on failure.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	raw, err := claimDue.Run(ctx, q.client, []string{QueueScheduled}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	jobs := make([]*Job, 0, len(raw))
	for _, r := range raw {
		var job Job
		if err := json.Unmarshal([]byte(r), &job); err != nil {
			q.logger.Warn("invalid job payload", zap.String("raw", r), zap.Error(err))
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Pending returns the number of jobs waiting in the scheduled set.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, QueueScheduled).Result()
}

// Retry re-schedules a job after RetryBackoff with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	job.RunAt = time.Now().Add(RetryBackoff)
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
