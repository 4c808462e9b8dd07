package middleware

import (
	"strings"

	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID    = "user_id"
	localUserEmail = "user_email"
	localUserName  = "user_name"
)

// RequireAuth is middleware that validates JWT token and sets user info in context
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization token", "code": "unauthorized"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>", "code": "unauthorized"})
		}

		// Validate token and the strict session against the DB
		user, err := auth.ValidateToken(c.UserContext(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "unauthorized"})
		}

		// Set user info in context for downstream handlers
		c.Locals(localUserID, user.ID)
		c.Locals(localUserEmail, user.Email)
		c.Locals(localUserName, user.FullName)

		return c.Next()
	}
}

// ActorFrom returns the authenticated user set by RequireAuth.
func ActorFrom(c *fiber.Ctx) service.Actor {
	id, _ := c.Locals(localUserID).(string)
	name, _ := c.Locals(localUserName).(string)
	email, _ := c.Locals(localUserEmail).(string)
	return service.Actor{ID: id, Name: name, Email: email}
}

// WithActor is used by tests and internal callers to impersonate a user.
func WithActor(actor service.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localUserID, actor.ID)
		c.Locals(localUserName, actor.Name)
		c.Locals(localUserEmail, actor.Email)
		return c.Next()
	}
}
