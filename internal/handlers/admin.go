package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
	"github.com/example/orderdesk/internal/utils"
)

// AdminHandler manages admin-only user endpoints.
type AdminHandler struct {
	users *services.UserService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(users *services.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// ListUsers returns users with their order counts, filtered by ?search=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	users, total, err := h.users.ListUsers(c.UserContext(), middleware.GetIdentity(c), c.Query("search"), pg.Repo())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}

type changeRoleRequest struct {
	Role models.Role `json:"role"`
}

// ChangeRole promotes or demotes another user.
func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	user, err := h.users.ChangeRole(c.UserContext(), middleware.GetIdentity(c), id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": userResponse(user)})
}

// DeleteUser removes another user account.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.users.DeleteUser(c.UserContext(), middleware.GetIdentity(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
