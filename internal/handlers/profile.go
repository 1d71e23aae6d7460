package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/services"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.users.Profile(c.UserContext(), middleware.GetIdentity(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":         user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"role":       user.Role,
			"created_at": user.CreatedAt,
			"updated_at": user.UpdatedAt,
		},
	})
}

// UpdateProfile updates the caller's name.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	user, err := h.users.UpdateProfile(c.UserContext(), middleware.GetIdentity(c), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": userResponse(user)})
}
