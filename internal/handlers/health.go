package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"praxis/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	connManager *services.ConnectionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connManager *services.ConnectionManager) *HealthHandler {
	return &HealthHandler{connManager: connManager}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"subscribers": h.connManager.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
