package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"shopchat/internal/domain/entity"
	"shopchat/internal/domain/repository"
	"shopchat/internal/infrastructure/redisq"
	ws "shopchat/internal/infrastructure/websocket"
)

// OfflinePushUseCase drains one recipient's offline backlog in bounded
// batches. It is the only consumer of OfflineMessageRecords: within one
// recipient, batches go out in original send order; across recipients no
// order is promised.
type OfflinePushUseCase struct {
	buffer      OfflineBuffer
	offlineRepo repository.OfflineMessageRepository
	registry    Registry
	jobs        JobEnqueuer
	batchSize   int64
	reloadSize  int
	batchDelay  int64 // ms between batches for the same recipient
	inflight    sync.Map
}

func NewOfflinePushUseCase(
	buffer OfflineBuffer,
	offlineRepo repository.OfflineMessageRepository,
	registry Registry,
	jobs JobEnqueuer,
	batchSize int64,
	reloadSize int,
	batchDelayMs int64,
) *OfflinePushUseCase {
	if batchSize <= 0 {
		batchSize = 10
	}
	if reloadSize <= 0 {
		reloadSize = 100
	}
	if batchDelayMs <= 0 {
		batchDelayMs = 1000
	}
	return &OfflinePushUseCase{
		buffer:      buffer,
		offlineRepo: offlineRepo,
		registry:    registry,
		jobs:        jobs,
		batchSize:   batchSize,
		reloadSize:  reloadSize,
		batchDelay:  batchDelayMs,
	}
}

// HandleJob is the queue handler for offline push jobs.
func (uc *OfflinePushUseCase) HandleJob(ctx context.Context, job *entity.Job) error {
	var payload OfflinePushPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode offline push payload: %w", err)
	}
	return uc.PushBatch(ctx, payload.Role, payload.ID)
}

// PushBatch sends one batch of the recipient's backlog and reschedules
// itself while more remains, instead of looping, so one identity cannot
// hold a worker slot for the whole drain.
func (uc *OfflinePushUseCase) PushBatch(ctx context.Context, role, id string) error {
	recipientKey := entity.IdentityKey(role, id)

	// One drain per recipient at a time; a concurrent duplicate job is a
	// no-op, not a double delivery.
	if _, busy := uc.inflight.LoadOrStore(recipientKey, true); busy {
		return nil
	}
	defer uc.inflight.Delete(recipientKey)

	total, err := uc.ensureBuffered(ctx, recipientKey)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	if !uc.registry.IsOnline(role, id) {
		// Recipient left again; the next online event retriggers the drain.
		return nil
	}

	messages, err := uc.buffer.Peek(ctx, recipientKey, uc.batchSize)
	if err != nil {
		return fmt.Errorf("peek backlog for %s: %w", recipientKey, err)
	}
	if len(messages) == 0 {
		return nil
	}

	sent := uc.registry.SendEvent(role, id, ws.EventOfflineMessages, ws.OfflineMessagesData{
		Messages:   messages,
		TotalCount: total,
	})
	if !sent {
		// Disconnected between the check and the push; keep the batch.
		return nil
	}

	// Remove only after the push went out. A crash before this point means
	// redelivery, which the at-least-once contract accepts.
	if err := uc.buffer.Trim(ctx, recipientKey, int64(len(messages))); err != nil {
		return fmt.Errorf("trim backlog for %s: %w", recipientKey, err)
	}

	msgIDs := make([]string, 0, len(messages))
	for _, message := range messages {
		msgIDs = append(msgIDs, message.MsgID)
	}
	if err := uc.offlineRepo.MarkDelivered(ctx, recipientKey, msgIDs); err != nil {
		log.Printf("PushBatch: failed to flag durable records for %s: %v", recipientKey, err)
	}

	remaining, err := uc.buffer.Len(ctx, recipientKey)
	if err != nil {
		return fmt.Errorf("count backlog for %s: %w", recipientKey, err)
	}
	if remaining > 0 {
		_, err := uc.jobs.Enqueue(ctx, QueueOfflinePush, JobTypeOfflinePush, OfflinePushPayload{
			Role: role,
			ID:   id,
		}, redisq.Options{DelayMs: uc.batchDelay})
		if err != nil {
			return fmt.Errorf("reschedule drain for %s: %w", recipientKey, err)
		}
	}

	return nil
}

// StartSweep periodically re-enqueues drains for online identities that still
// have a backlog. It covers identities whose online event was missed, for
// example when the job for it landed in the dead list.
func (uc *OfflinePushUseCase) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				uc.sweep(ctx)
			}
		}
	}()
}

func (uc *OfflinePushUseCase) sweep(ctx context.Context) {
	recipientKeys, err := uc.buffer.Identities(ctx)
	if err != nil {
		log.Printf("Sweep: failed to scan backlogs: %v", err)
		return
	}

	for _, recipientKey := range recipientKeys {
		parts := strings.SplitN(recipientKey, ":", 2)
		if len(parts) != 2 {
			continue
		}
		role, id := parts[0], parts[1]

		if !uc.registry.IsOnline(role, id) {
			continue
		}

		_, err := uc.jobs.Enqueue(ctx, QueueOfflinePush, JobTypeOfflinePush, OfflinePushPayload{
			Role: role,
			ID:   id,
		}, redisq.Options{})
		if err != nil {
			log.Printf("Sweep: failed to enqueue drain for %s: %v", recipientKey, err)
		}
	}
}

// ensureBuffered makes the fast buffer a cache over the durable store: when
// the buffer is empty but undelivered durable records exist, a bounded page
// is reloaded first. Returns the backlog size after any reload.
func (uc *OfflinePushUseCase) ensureBuffered(ctx context.Context, recipientKey string) (int64, error) {
	buffered, err := uc.buffer.Len(ctx, recipientKey)
	if err != nil {
		return 0, fmt.Errorf("count buffered backlog for %s: %w", recipientKey, err)
	}
	if buffered > 0 {
		return buffered, nil
	}

	pending, err := uc.offlineRepo.CountPending(ctx, recipientKey)
	if err != nil {
		return 0, fmt.Errorf("count durable backlog for %s: %w", recipientKey, err)
	}
	if pending == 0 {
		return 0, nil
	}

	records, err := uc.offlineRepo.ListPending(ctx, recipientKey, uc.reloadSize)
	if err != nil {
		return 0, fmt.Errorf("reload durable backlog for %s: %w", recipientKey, err)
	}
	for _, record := range records {
		message := record.Message
		if err := uc.buffer.Push(ctx, recipientKey, &message); err != nil {
			return 0, fmt.Errorf("refill buffer for %s: %w", recipientKey, err)
		}
	}

	log.Printf("PushBatch: reloaded %d durable records into buffer for %s", len(records), recipientKey)
	return uc.buffer.Len(ctx, recipientKey)
}
