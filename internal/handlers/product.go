package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/services"
	"github.com/example/orderdesk/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	products *services.ProductService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(products *services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts returns paginated active products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	return h.list(c, false)
}

// ListAllProducts is the admin listing, inactive products included.
func (h *ProductHandler) ListAllProducts(c *fiber.Ctx) error {
	return h.list(c, true)
}

func (h *ProductHandler) list(c *fiber.Ctx, includeInactive bool) error {
	pg := utils.ParsePagination(c)
	q := services.ProductQuery{
		IncludeInactive: includeInactive,
		Search:          strings.TrimSpace(c.Query("search")),
		Page:            pg.Repo(),
	}
	if v := c.Query("min_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			q.MinPrice = &d
		}
	}
	if v := c.Query("max_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			q.MaxPrice = &d
		}
	}

	products, total, err := h.products.ListProducts(c.UserContext(), middleware.GetIdentity(c), q)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads a single product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	product, err := h.products.GetProduct(c.UserContext(), middleware.GetIdentity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	product, err := h.products.CreateProduct(c.UserContext(), middleware.GetIdentity(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces a product's editable fields.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	product, err := h.products.UpdateProduct(c.UserContext(), middleware.GetIdentity(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.products.DeleteProduct(c.UserContext(), middleware.GetIdentity(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// RegisterProductRoutes mounts the public catalog endpoints on router.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
}

// RegisterAdminRoutes mounts the catalog management endpoints on router.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Get("/", h.ListAllProducts)
	router.Post("/", h.CreateProduct)
	router.Get("/:id", h.GetProduct)
	router.Put("/:id", h.UpdateProduct)
	router.Delete("/:id", h.DeleteProduct)
}
