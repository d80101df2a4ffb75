package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"praxis/internal/services"
)

// UserHandler handles contributor HTTP requests
type UserHandler struct {
	ledgerService *services.LedgerService
}

// NewUserHandler creates a new user handler
func NewUserHandler(ledgerService *services.LedgerService) *UserHandler {
	return &UserHandler{
		ledgerService: ledgerService,
	}
}

// Stats returns a contributor's aggregate ledger statistics
// GET /api/users/:userId/stats
func (h *UserHandler) Stats(c *fiber.Ctx) error {
	userID := c.Params("userId")

	stats, err := h.ledgerService.UserStats(c.Context(), userID)
	if err != nil {
		log.Printf("❌ [USER] Failed to load stats for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load user stats",
		})
	}

	return c.JSON(stats)
}
