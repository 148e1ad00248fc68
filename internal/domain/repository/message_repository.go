package repository

import (
	"context"

	"shopchat/internal/domain/entity"
)

type MessageRepository interface {
	// Create persists a message under its conversation. Fails on duplicate
	// msgId so a replayed send cannot shadow the original record.
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, conversationID, msgID string) (*entity.Message, error)
	// ListByConversation returns messages in reverse-chronological order.
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	UpdateStatus(ctx context.Context, conversationID, msgID, status string) error
	// UpdateStatusUpTo transitions every message addressed to the recipient in
	// the conversation, up to and including msgID, that has not yet reached
	// the given status. Returns the ids actually transitioned, in send order.
	UpdateStatusUpTo(ctx context.Context, conversationID, msgID, recipientRole, recipientID, status string) ([]string, error)
	GetStatuses(ctx context.Context, conversationID string, msgIDs []string) ([]*entity.Message, error)
	ListUnread(ctx context.Context, conversationID, recipientRole, recipientID string, limit int) ([]*entity.Message, error)
}
