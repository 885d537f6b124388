package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/catalog-service/internal/api/http/handlers"
	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/service"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Books          *handlers.BooksHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The request gate runs for every /api
// route; guards then decide per route what an anonymous caller may do.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.Auth.Me)

	books := api.Group("/books")
	books.Get("/", cfg.Books.List)
	books.Get("/:id", cfg.Books.Get)
	books.Post("/", auth.Require(service.RoleToCreateBook), cfg.Books.Create)
	books.Put("/:id", auth.Require(service.RoleToUpdateBook), cfg.Books.Update)
	books.Delete("/:id", auth.Require(service.RoleToDeleteBook), cfg.Books.Delete)
}
