package repository

import (
	"context"

	"shopchat/internal/domain/entity"
)

// OfflineMessageRepository is the durable fallback behind the fast offline
// buffer. Records survive a buffer flush or process restart and are reloaded
// in original send order.
type OfflineMessageRepository interface {
	Create(ctx context.Context, record *entity.OfflineMessageRecord) error
	// ListPending returns undelivered records for a recipient in send order,
	// bounded by limit.
	ListPending(ctx context.Context, recipientKey string, limit int) ([]*entity.OfflineMessageRecord, error)
	CountPending(ctx context.Context, recipientKey string) (int64, error)
	// MarkDelivered flags the records for the given message ids as delivered.
	MarkDelivered(ctx context.Context, recipientKey string, msgIDs []string) error
}
