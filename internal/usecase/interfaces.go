package usecase

import (
	"context"

	"shopchat/internal/domain/entity"
	"shopchat/internal/infrastructure/kafka"
	"shopchat/internal/infrastructure/redisq"
)

// Registry resolves identities to live connections. Implemented by the
// websocket Manager.
type Registry interface {
	IsOnline(role, id string) bool
	SendEvent(role, id, eventType string, data interface{}) bool
}

// OfflineBuffer is the fast per-recipient backlog in front of the durable
// offline store.
type OfflineBuffer interface {
	Push(ctx context.Context, recipientKey string, message *entity.Message) error
	Peek(ctx context.Context, recipientKey string, n int64) ([]*entity.Message, error)
	Trim(ctx context.Context, recipientKey string, n int64) error
	Len(ctx context.Context, recipientKey string) (int64, error)
	Identities(ctx context.Context) ([]string, error)
}

// JobEnqueuer schedules background work on a named queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queue, jobType string, payload interface{}, opts redisq.Options) (string, error)
}

// EventPublisher emits audit events for downstream consumers.
type EventPublisher interface {
	Publish(event kafka.ChatEvent)
}
