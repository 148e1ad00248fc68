package entity

import "time"

// WorkerHealthStatus is the heartbeat record a long-running consumer keeps
// fresh under a short TTL. A missing or stale record means the worker is
// considered down; no other liveness handshake exists.
type WorkerHealthStatus struct {
	ID            string    `json:"id"`
	PID           int       `json:"pid"`
	Status        string    `json:"status"` // "running", "stopping"
	StartTime     time.Time `json:"start_time"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}
