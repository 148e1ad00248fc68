package redisq

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"shopchat/internal/domain/entity"
	"shopchat/pkg/logger"
)

// Handler executes one claimed job. A returned error triggers the queue's
// retry policy.
type Handler func(ctx context.Context, job *entity.Job) error

// Worker consumes one named queue with a bounded number of concurrent jobs.
type Worker struct {
	queue       *JobQueue
	queueName   string
	handler     Handler
	concurrency int
	health      *HealthMonitor
	workerID    string
}

func NewWorker(queue *JobQueue, queueName string, handler Handler, concurrency int, health *HealthMonitor, workerID string) *Worker {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Worker{
		queue:       queue,
		queueName:   queueName,
		handler:     handler,
		concurrency: concurrency,
		health:      health,
		workerID:    workerID,
	}
}

// Run blocks until ctx is done. It keeps the heartbeat fresh, promotes due
// delayed jobs, and fans claimed jobs out to the concurrency pool.
func (w *Worker) Run(ctx context.Context) {
	if w.health != nil {
		if err := w.health.Register(ctx, w.workerID); err != nil {
			logger.Warn("Worker %s: heartbeat registration failed: %v", w.workerID, err)
		}
		go w.health.HeartbeatLoop(ctx, w.workerID)
	}

	// Promotion runs on one goroutine; claims run on the pool.
	go w.promoteLoop(ctx)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.claimLoop(ctx)
		}()
	}
	wg.Wait()

	if w.health != nil {
		w.health.Unregister(context.Background(), w.workerID)
	}
}

func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx, w.queueName); err != nil && ctx.Err() == nil {
				logger.Warn("Worker %s: promote failed: %v", w.workerID, err)
			}
		}
	}
}

func (w *Worker) claimLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Claim(ctx, w.queueName, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Worker %s: claim failed: %v", w.workerID, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.execute(ctx, job)
	}
}

func (w *Worker) execute(ctx context.Context, job *entity.Job) {
	defer func() {
		// A panicking handler must not take the worker down; the job goes
		// through the normal retry path.
		if r := recover(); r != nil {
			log.Printf("Worker %s: handler panic on job %s (%s): %v", w.workerID, job.ID, job.Type, r)
			w.retry(ctx, job, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := w.handler(ctx, job); err != nil {
		log.Printf("Worker %s: job %s (%s) attempt %d failed: %v", w.workerID, job.ID, job.Type, job.Attempts+1, err)
		w.retry(ctx, job, err)
	}
}

func (w *Worker) retry(ctx context.Context, job *entity.Job, jobErr error) {
	if err := w.queue.Retry(ctx, job, jobErr); err != nil {
		logger.Error("Worker %s: failed to reschedule job %s: %v", w.workerID, job.ID, err)
	}
}
