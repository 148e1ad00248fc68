package router

import (
	"shopchat/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	SetupChatRouter(e, authMiddleware)
	SetupHealthRouter(e)
}
