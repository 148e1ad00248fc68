package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"shopchat/internal/domain/entity"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffMs   = 1000
)

// Options tunes a single enqueue. Zero values fall back to queue defaults.
type Options struct {
	Attempts  int   // max attempts, default 3
	BackoffMs int64 // base backoff, doubled per attempt
	Priority  int   // >0 jumps the line
	DelayMs   int64 // initial scheduling delay
}

// JobQueue is a named-queue job store on Redis: a ready list, a delayed
// sorted set scored by ready-time, and a dead list for jobs that exhausted
// their attempts. Jobs are claimed by exactly one consumer via list pop.
type JobQueue struct {
	rdb *redis.Client
}

func NewJobQueue(rdb *redis.Client) *JobQueue {
	return &JobQueue{rdb: rdb}
}

// Enqueue adds a job to the named queue and returns its id.
func (q *JobQueue) Enqueue(ctx context.Context, queue, jobType string, payload interface{}, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	if opts.Attempts <= 0 {
		opts.Attempts = DefaultMaxAttempts
	}
	if opts.BackoffMs <= 0 {
		opts.BackoffMs = DefaultBackoffMs
	}

	job := &entity.Job{
		ID:          uuid.New().String(),
		Queue:       queue,
		Type:        jobType,
		Payload:     raw,
		MaxAttempts: opts.Attempts,
		BackoffMs:   opts.BackoffMs,
		Priority:    opts.Priority,
		EnqueuedAt:  time.Now(),
	}

	if opts.DelayMs > 0 {
		return job.ID, q.schedule(ctx, job, time.Duration(opts.DelayMs)*time.Millisecond)
	}
	return job.ID, q.pushReady(ctx, job)
}

func (q *JobQueue) pushReady(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	// Priority jobs go to the head; pop order is head-first.
	if job.Priority > 0 {
		return q.rdb.LPush(ctx, readyKey(job.Queue), data).Err()
	}
	return q.rdb.RPush(ctx, readyKey(job.Queue), data).Err()
}

func (q *JobQueue) schedule(ctx context.Context, job *entity.Job, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	readyAt := float64(time.Now().Add(delay).UnixMilli())
	return q.rdb.ZAdd(ctx, delayedKey(job.Queue), redis.Z{Score: readyAt, Member: data}).Err()
}

// PromoteDue moves delayed jobs whose ready-time has passed onto the ready
// list. Called periodically by workers.
func (q *JobQueue) PromoteDue(ctx context.Context, queue string) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())

	members, err := q.rdb.ZRangeByScore(ctx, delayedKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan delayed jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		// Remove first so two promoting workers cannot double-push the same
		// job; only the remover gets to push.
		removed, err := q.rdb.ZRem(ctx, delayedKey(queue), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.rdb.RPush(ctx, readyKey(queue), member).Err(); err != nil {
			return promoted, fmt.Errorf("promote job: %w", err)
		}
		promoted++
	}

	return promoted, nil
}

// Claim pops the next ready job, blocking up to timeout. Returns nil when the
// queue stays empty.
func (q *JobQueue) Claim(ctx context.Context, queue string, timeout time.Duration) (*entity.Job, error) {
	result, err := q.rdb.BLPop(ctx, timeout, readyKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}

	// BLPop returns [key, value]
	var job entity.Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Retry re-schedules a failed job with exponential backoff, or parks it in
// the dead list once its attempts are exhausted. Dead jobs are retained for
// operator inspection, never dropped.
func (q *JobQueue) Retry(ctx context.Context, job *entity.Job, jobErr error) error {
	job.Attempts++
	job.LastError = jobErr.Error()

	if job.Attempts >= job.MaxAttempts {
		job.FailedAt = time.Now()
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal dead job: %w", err)
		}
		return q.rdb.RPush(ctx, deadKey(job.Queue), data).Err()
	}

	return q.schedule(ctx, job, NextBackoff(job.BackoffMs, job.Attempts))
}

// NextBackoff returns the delay before the given retry attempt (1-based):
// base, 2*base, 4*base, ...
func NextBackoff(baseMs int64, attempt int) time.Duration {
	delay := baseMs
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return time.Duration(delay) * time.Millisecond
}

// DeadJobs returns up to limit parked jobs for inspection.
func (q *JobQueue) DeadJobs(ctx context.Context, queue string, limit int64) ([]*entity.Job, error) {
	members, err := q.rdb.LRange(ctx, deadKey(queue), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}

	var jobs []*entity.Job
	for _, member := range members {
		var job entity.Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// PendingCount reports ready + delayed jobs for a queue.
func (q *JobQueue) PendingCount(ctx context.Context, queue string) (int64, error) {
	ready, err := q.rdb.LLen(ctx, readyKey(queue)).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := q.rdb.ZCard(ctx, delayedKey(queue)).Result()
	if err != nil {
		return 0, err
	}
	return ready + delayed, nil
}
