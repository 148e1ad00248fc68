package handler

import (
	"shopchat/internal/usecase"
)

var (
	chatHandler *ChatHandler
)

func Setup(
	deliveryUseCase *usecase.DeliveryUseCase,
) {
	chatHandler = NewChatHandler(deliveryUseCase)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}
