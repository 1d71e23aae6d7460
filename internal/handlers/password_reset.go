package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/services"
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	auth *services.AuthService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(auth *services.AuthService) *PasswordResetHandler {
	return &PasswordResetHandler{auth: auth}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset token and mails the reset link to the user.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Email == "" {
		return services.FieldErrors{"email": "is required"}.Err()
	}

	if err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password reset link sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password using a reset token.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	if err := h.auth.ConsumePasswordResetToken(c.UserContext(), req.Token, req.Password); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated",
	})
}
