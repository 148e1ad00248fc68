package handler

import (
	"github.com/labstack/echo/v4"

	"shopchat/internal/usecase"
	"shopchat/pkg/response"
	"shopchat/pkg/utils"
)

type ChatHandler struct {
	deliveryUseCase *usecase.DeliveryUseCase
}

func NewChatHandler(deliveryUseCase *usecase.DeliveryUseCase) *ChatHandler {
	return &ChatHandler{
		deliveryUseCase: deliveryUseCase,
	}
}

type messageStatusRequest struct {
	MsgIDs []string `json:"msg_ids" validate:"required,min=1"`
}

// GetConversations lists the authenticated identity's conversations.
func (h *ChatHandler) GetConversations(c echo.Context) error {
	uid := c.Get("uid").(string)
	role := c.Get("role").(string)
	shop := c.Get("shop").(string)

	params := utils.GetPaginationParams(c)

	conversations, total, err := h.deliveryUseCase.ListConversations(c.Request().Context(), role, uid, shop, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, params.Page, params.PageSize)
}

// GetConversationMessages returns paginated history, newest first.
func (h *ChatHandler) GetConversationMessages(c echo.Context) error {
	conversationID := c.Param("id")

	params := utils.GetPaginationParams(c)

	messages, total, err := h.deliveryUseCase.ListConversationMessages(c.Request().Context(), conversationID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// GetUnreadMessages returns messages still awaiting this identity's read.
func (h *ChatHandler) GetUnreadMessages(c echo.Context) error {
	uid := c.Get("uid").(string)
	role := c.Get("role").(string)
	shop := c.Get("shop").(string)

	messages, err := h.deliveryUseCase.GetUnreadMessages(c.Request().Context(), role, uid, shop)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// GetMessageStatus reports current statuses for explicitly queried messages.
// Clients call this to reconcile after a hard ack timeout.
func (h *ChatHandler) GetMessageStatus(c echo.Context) error {
	conversationID := c.Param("id")

	var req messageStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	messages, err := h.deliveryUseCase.GetMessageStatus(c.Request().Context(), conversationID, req.MsgIDs)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}
