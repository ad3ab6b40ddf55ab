package routes

import (
	"github.com/gofiber/fiber/v3"

	"curation-grid/internal/delivery/http/handler"
	"curation-grid/internal/delivery/http/middleware"
	v1 "curation-grid/internal/delivery/http/routes/v1"
)

type Registry struct {
	health *handler.HealthHandler
	grid   *handler.GridHandler
	auth   *middleware.AuthMiddleware
}

func NewRegistry(health *handler.HealthHandler, grid *handler.GridHandler, auth *middleware.AuthMiddleware) *Registry {
	return &Registry{health: health, grid: grid, auth: auth}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	v1.Register(api.Group("/v1"), r.grid, r.auth)
}
