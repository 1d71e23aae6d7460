package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
	"github.com/example/orderdesk/internal/utils"
)

// OrderHandler manages order lifecycle endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder places a processing order for the caller, or for user_id when
// the caller is an admin.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	id, err := h.orders.CreateOrder(c.UserContext(), middleware.GetIdentity(c), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      id,
	})
}

// ListMyOrders returns the caller's orders.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrdersForCaller(c.UserContext(), middleware.GetIdentity(c), pg.Repo())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// ListOrders returns all orders, optionally filtered by ?status=.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), middleware.GetIdentity(c), services.OrderQuery{
		Status: models.OrderStatus(c.Query("status")),
		Page:   pg.Repo(),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns an order with owner and products resolved.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.UserContext(), middleware.GetIdentity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateOrder applies a partial update to items, total or status.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req services.UpdateOrderInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	order, err := h.orders.UpdateOrder(c.UserContext(), middleware.GetIdentity(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// DeleteOrder removes an order.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.orders.DeleteOrder(c.UserContext(), middleware.GetIdentity(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id")
	}
	return id, nil
}
