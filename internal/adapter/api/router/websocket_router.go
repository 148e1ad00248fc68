package router

import (
	"github.com/labstack/echo/v4"

	"shopchat/internal/adapter/api/handler"
	"shopchat/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// WebSocket endpoint for real-time communication
	// No auth middleware here; the handshake authenticates inside the handler
	e.GET("/ws", wsHandler.HandleWebSocket, middleware.HandshakeRateLimit())
}
