package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"

	"curation-grid/internal/pkg/response"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

// Health reports 200 when every check passes and 503 otherwise, with the
// per-dependency result in data.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := fiber.StatusOK
	out := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			out[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}

	if status != fiber.StatusOK {
		return response.Error(c, status, "", out)
	}
	return response.Success(c, status, response.MessageOK, out)
}
