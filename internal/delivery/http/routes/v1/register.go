package v1

import (
	"github.com/gofiber/fiber/v3"

	"curation-grid/internal/delivery/http/handler"
	"curation-grid/internal/delivery/http/middleware"
)

// Register mounts the grid API. Every grid route requires a curator token.
func Register(r fiber.Router, gridHandler *handler.GridHandler, authMw *middleware.AuthMiddleware) {
	if r == nil || gridHandler == nil || authMw == nil {
		return
	}

	protected := r.Group("", authMw.Middleware())
	gridHandler.RegisterRoutes(protected.Group("/grid"))
}
