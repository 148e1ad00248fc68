package entity

import (
	"encoding/json"
	"time"
)

// Job states
const (
	JobStateWaiting = "waiting"
	JobStateDelayed = "delayed"
	JobStateActive  = "active"
	JobStateDead    = "dead"
)

// Job is a generic retrying unit of background work. Enqueued by any
// producer, claimed by exactly one consumer, retried with exponential
// backoff up to MaxAttempts, then parked in the queue's dead list.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"` // attempts made so far
	MaxAttempts int             `json:"max_attempts"`
	BackoffMs   int64           `json:"backoff_ms"` // base delay, doubled per attempt
	Priority    int             `json:"priority"`   // positive jumps to the head of the ready list
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
	FailedAt    time.Time       `json:"failed_at,omitempty"`
}
