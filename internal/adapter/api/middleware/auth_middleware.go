package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"shopchat/internal/infrastructure/firebase"
)

type AuthMiddleware struct {
	authClient *firebase.FirebaseAuthClient
}

func NewAuthMiddleware(authClient *firebase.FirebaseAuthClient) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
	}
}

// Authenticate verifies the bearer token and stores the chat identity on the
// request context under "uid", "role" and "shop".
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		identity, err := m.authClient.VerifyIdentity(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", identity.UID)
		c.Set("role", identity.Role)
		c.Set("shop", identity.Shop)

		return next(c)
	}
}

// IdentityFromToken verifies a raw token outside the middleware chain, for
// handshakes that cannot carry an Authorization header.
func (m *AuthMiddleware) IdentityFromToken(c echo.Context, token string) (*firebase.Identity, error) {
	return m.authClient.VerifyIdentity(c.Request().Context(), token)
}
