package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"shopchat/internal/domain/entity"
	"shopchat/pkg/logger"
)

const DefaultHeartbeatTTL = 15 * time.Second

// HealthMonitor keeps a TTL'd heartbeat key per worker. External monitors
// declare a worker down purely by the absence of a fresh key.
type HealthMonitor struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewHealthMonitor(rdb *redis.Client, ttl time.Duration) *HealthMonitor {
	if ttl <= 0 {
		ttl = DefaultHeartbeatTTL
	}
	return &HealthMonitor{rdb: rdb, ttl: ttl}
}

// Register writes the initial heartbeat record.
func (h *HealthMonitor) Register(ctx context.Context, workerID string) error {
	status := &entity.WorkerHealthStatus{
		ID:            workerID,
		PID:           os.Getpid(),
		Status:        "running",
		StartTime:     time.Now(),
		LastHeartbeat: time.Now(),
	}
	return h.write(ctx, status)
}

// HeartbeatLoop refreshes the key at a third of the TTL until ctx is done.
func (h *HealthMonitor) HeartbeatLoop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(h.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := h.Get(ctx, workerID)
			if err != nil {
				// Key expired or lost; re-register rather than flap.
				if err := h.Register(ctx, workerID); err != nil {
					logger.Warn("Heartbeat re-register failed for %s: %v", workerID, err)
				}
				continue
			}
			status.LastHeartbeat = time.Now()
			if err := h.write(ctx, status); err != nil {
				logger.Warn("Heartbeat refresh failed for %s: %v", workerID, err)
			}
		}
	}
}

func (h *HealthMonitor) write(ctx context.Context, status *entity.WorkerHealthStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal worker health: %w", err)
	}
	return h.rdb.Set(ctx, workerKey(status.ID), data, h.ttl).Err()
}

// Unregister marks the worker stopping and lets the key expire naturally.
func (h *HealthMonitor) Unregister(ctx context.Context, workerID string) {
	status, err := h.Get(ctx, workerID)
	if err != nil {
		return
	}
	status.Status = "stopping"
	if err := h.write(ctx, status); err != nil {
		logger.Warn("Heartbeat unregister failed for %s: %v", workerID, err)
	}
}

// IsAlive reports whether a fresh heartbeat key exists.
func (h *HealthMonitor) IsAlive(ctx context.Context, workerID string) bool {
	exists, err := h.rdb.Exists(ctx, workerKey(workerID)).Result()
	return err == nil && exists > 0
}

func (h *HealthMonitor) Get(ctx context.Context, workerID string) (*entity.WorkerHealthStatus, error) {
	data, err := h.rdb.Get(ctx, workerKey(workerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("worker %s heartbeat not found: %w", workerID, err)
	}

	var status entity.WorkerHealthStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("unmarshal worker health: %w", err)
	}
	return &status, nil
}

// List scans all live heartbeat records.
func (h *HealthMonitor) List(ctx context.Context) ([]*entity.WorkerHealthStatus, error) {
	var statuses []*entity.WorkerHealthStatus

	iter := h.rdb.Scan(ctx, 0, workerKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := h.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue // Key expired between scan and get
		}
		var status entity.WorkerHealthStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		statuses = append(statuses, &status)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan worker heartbeats: %w", err)
	}

	return statuses, nil
}
