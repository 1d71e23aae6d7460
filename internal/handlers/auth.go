package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth  *services.AuthService
	users *services.UserService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, users *services.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	}
}

// Register creates a new user account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	user, token, err := h.auth.Register(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
		"token":   token,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	user, token, err := h.auth.IssueToken(c.UserContext(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
		"token":   token,
	})
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.Profile(c.UserContext(), middleware.GetIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "user": userResponse(user)})
}
