package handler

import (
	"sigef-backend/internal/middleware"
	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required", "code": "bad_request"})
	}

	response, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return c.JSON(response)
}

// Me returns the user behind the current token
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	return c.JSON(fiber.Map{"id": actor.ID, "email": actor.Email, "full_name": actor.Name})
}
