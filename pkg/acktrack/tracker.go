// Package acktrack is the sender-side view of an in-flight message: an
// optimistic "sending" status guarded by two timers. The soft timer flips the
// local display to "still sending", the hard timer to a local FAILED guess.
// Neither is authoritative: any genuine ack cancels both immediately,
// whatever status it reports, so a late legitimate ack always wins over a
// timeout guess.
package acktrack

import (
	"sync"
	"time"
)

const (
	DefaultSoftTimeout = 1 * time.Second
	DefaultHardTimeout = 10 * time.Second
)

// Callbacks receive local display-state changes for a tracked msgId.
type Callbacks struct {
	OnSoftTimeout func(msgID string)         // flip display to "still sending"
	OnHardTimeout func(msgID string)         // flip display to FAILED
	OnAck         func(msgID, status string) // definitive server status
}

type pendingSend struct {
	soft *time.Timer
	hard *time.Timer
}

// Tracker watches every locally initiated send until its ack arrives.
type Tracker struct {
	mu        sync.Mutex
	pending   map[string]*pendingSend
	softDelay time.Duration
	hardDelay time.Duration
	callbacks Callbacks
}

func NewTracker(softDelay, hardDelay time.Duration, callbacks Callbacks) *Tracker {
	if softDelay <= 0 {
		softDelay = DefaultSoftTimeout
	}
	if hardDelay <= 0 {
		hardDelay = DefaultHardTimeout
	}
	return &Tracker{
		pending:   make(map[string]*pendingSend),
		softDelay: softDelay,
		hardDelay: hardDelay,
		callbacks: callbacks,
	}
}

// Track starts both timers for a just-sent message. Tracking an id twice
// resets its timers.
func (t *Tracker) Track(msgID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.pending[msgID]; ok {
		existing.soft.Stop()
		existing.hard.Stop()
	}

	p := &pendingSend{}
	p.soft = time.AfterFunc(t.softDelay, func() {
		// Only report while still unresolved.
		t.mu.Lock()
		_, live := t.pending[msgID]
		t.mu.Unlock()
		if live && t.callbacks.OnSoftTimeout != nil {
			t.callbacks.OnSoftTimeout(msgID)
		}
	})
	p.hard = time.AfterFunc(t.hardDelay, func() {
		t.mu.Lock()
		_, live := t.pending[msgID]
		delete(t.pending, msgID)
		t.mu.Unlock()
		if live && t.callbacks.OnHardTimeout != nil {
			t.callbacks.OnHardTimeout(msgID)
		}
	})
	t.pending[msgID] = p
}

// Resolve cancels both timers the instant any genuine ack arrives. Returns
// false when the id was not being tracked (already resolved or timed out).
func (t *Tracker) Resolve(msgID, status string) bool {
	t.mu.Lock()
	p, ok := t.pending[msgID]
	if ok {
		p.soft.Stop()
		p.hard.Stop()
		delete(t.pending, msgID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if t.callbacks.OnAck != nil {
		t.callbacks.OnAck(msgID, status)
	}
	return true
}

// Pending reports how many sends are still awaiting an ack.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels all timers without firing callbacks, for teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, p := range t.pending {
		p.soft.Stop()
		p.hard.Stop()
		delete(t.pending, id)
	}
}
