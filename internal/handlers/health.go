package handlers

import (
	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	manager *engine.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(manager *engine.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Healthz reports that the node is up and whether it can author pages.
func (h *HealthHandler) Healthz(c fiber.Ctx) error {
	return jsonSuccess(c, fiber.Map{
		"authoring": h.manager.CanWrite(),
	})
}
