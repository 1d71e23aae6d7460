package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
)

const identityContextKey = "currentIdentity"

// AuthMiddleware validates the bearer token and loads the caller identity into context.
func AuthMiddleware(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := auth.Authenticate(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is sent and lets
// anonymous requests through. A malformed token is still rejected.
func OptionalAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		identity, err := auth.Authenticate(header)
		if err != nil {
			return err
		}
		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// RequireRole rejects callers that do not hold role. Mount after AuthMiddleware.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := services.RequireRole(GetIdentity(c), role); err != nil {
			return err
		}
		return c.Next()
	}
}

// GetIdentity extracts the authenticated caller from context, or nil.
func GetIdentity(c *fiber.Ctx) *services.Identity {
	if id, ok := c.Locals(identityContextKey).(*services.Identity); ok {
		return id
	}
	return nil
}
