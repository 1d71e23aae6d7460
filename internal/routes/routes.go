package routes

import (
	"io"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/orderdesk/internal/handlers"
	"github.com/example/orderdesk/internal/metrics"
	"github.com/example/orderdesk/internal/middleware"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth     *services.AuthService
	Users    *services.UserService
	Products *services.ProductService
	Orders   *services.OrderService
}

// Options tunes the app built by NewApp.
type Options struct {
	CORSOrigins string
	// AccessLog receives one line per request; nil disables it.
	AccessLog io.Writer
}

// NewApp builds the fiber app with middleware and every route mounted.
func NewApp(svc Services, opts Options, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Orderdesk",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())

	Register(app, svc)
	return app
}

// DefaultOptions logs requests to stdout.
func DefaultOptions(corsOrigins string) Options {
	if corsOrigins == "" {
		corsOrigins = "*"
	}
	return Options{CORSOrigins: corsOrigins, AccessLog: os.Stdout}
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, svc Services) {
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users)
	resetHandler := handlers.NewPasswordResetHandler(svc.Auth)
	productHandler := handlers.NewProductHandler(svc.Products)
	orderHandler := handlers.NewOrderHandler(svc.Orders)
	profileHandler := handlers.NewProfileHandler(svc.Users)
	adminHandler := handlers.NewAdminHandler(svc.Users)

	requireAuth := middleware.AuthMiddleware(svc.Auth)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/reset-password", resetHandler.ResetPassword)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Products
	products := api.Group("/products", middleware.OptionalAuth(svc.Auth))
	productHandler.RegisterProductRoutes(products)

	// Orders; admin checks happen in the service so that the caller gets
	// forbidden rather than not found.
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/mine", orderHandler.ListMyOrders)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Put("/:id", orderHandler.UpdateOrder)
	orders.Delete("/:id", orderHandler.DeleteOrder)

	// Profile
	profile := api.Group("/profile", requireAuth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)

	// Admin
	admin := api.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
	productHandler.RegisterAdminRoutes(admin.Group("/products"))

	users := admin.Group("/users")
	users.Get("/", adminHandler.ListUsers)
	users.Put("/:id/role", adminHandler.ChangeRole)
	users.Delete("/:id", adminHandler.DeleteUser)
}
