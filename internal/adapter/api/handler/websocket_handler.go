package handler

import (
	"context"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"shopchat/internal/adapter/api/middleware"
	"shopchat/internal/domain/entity"
	ws "shopchat/internal/infrastructure/websocket"
	"shopchat/pkg/errors"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket upgrades the connection and registers the identity. Auth is
// handled here instead of middleware because browser WebSocket clients cannot
// set an Authorization header, so the token arrives as a query parameter.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	identity, err := h.authMiddleware.IdentityFromToken(c, token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	shop := identity.Shop
	if identity.Role == entity.RoleCustomer {
		// Customers name the shop they are contacting on connect.
		shop = c.QueryParam("shop")
		if shop == "" {
			return errors.BadRequest("shop query parameter is required", nil)
		}
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		Role: identity.Role,
		ID:   identity.UID,
		Shop: shop,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	// The request context dies when this handler returns; the pumps outlive it.
	go client.ReadPump(context.Background(), h.wsManager)
	go client.WritePump()

	return nil
}
