package api

import (
	"context"
	"strings"

	domain "github.com/example/realtime-chat/domain/user"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store the caller's identity in the
	// Fiber context.
	UserContextKey = "user"

	tokenContextKey = "token"
)

// Authenticator resolves a bearer token to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// AuthMiddleware creates a middleware that resolves bearer tokens.
func AuthMiddleware(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		identity, err := authenticator.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserContextKey, identity)
		return c.Next()
	}
}

// identityFrom returns the identity stored by AuthMiddleware.
func identityFrom(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(UserContextKey).(domain.Identity)
	return identity, ok
}

// bearerToken returns the credential of a websocket handshake, taken from
// the token query parameter or the Authorization header. Browsers cannot
// set headers on websocket requests.
func bearerToken(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
}
