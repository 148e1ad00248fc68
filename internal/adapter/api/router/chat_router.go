package router

import (
	"github.com/labstack/echo/v4"

	"shopchat/internal/adapter/api/handler"
	"shopchat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the REST side of the chat API (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/conversations")
	chatGroup.Use(middleware.GeneralRateLimit())
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("", chatHandler.GetConversations)                       // GET /v1/conversations - identity's conversations
	chatGroup.GET("/:id/messages", chatHandler.GetConversationMessages)   // GET /v1/conversations/:id/messages - paginated history
	chatGroup.POST("/:id/messages/status", chatHandler.GetMessageStatus)  // POST /v1/conversations/:id/messages/status - reconcile statuses

	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(middleware.GeneralRateLimit())
	messageGroup.Use(authMiddleware.Authenticate)

	messageGroup.GET("/unread", chatHandler.GetUnreadMessages) // GET /v1/messages/unread - pending reads for identity
}
