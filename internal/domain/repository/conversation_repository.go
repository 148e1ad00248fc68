package repository

import (
	"context"

	"shopchat/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	GetByShopAndCustomer(ctx context.Context, shop, customerID string) (*entity.Conversation, error)
	ListByShop(ctx context.Context, shop string, limit, offset int) ([]*entity.Conversation, int64, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*entity.Conversation, error)
	Update(ctx context.Context, conversation *entity.Conversation) error
}
