package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"praxis/internal/models"
	"praxis/internal/services"
)

// UsageHandler handles usage-event HTTP requests
type UsageHandler struct {
	ledgerService *services.LedgerService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(ledgerService *services.LedgerService) *UsageHandler {
	return &UsageHandler{
		ledgerService: ledgerService,
	}
}

// Record appends a usage event to the ledger
// POST /api/usage
func (h *UsageHandler) Record(c *fiber.Ctx) error {
	var req models.RecordUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	event, err := h.ledgerService.RecordUsage(c.Context(), &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": verr.Reason,
				"field": verr.Field,
			})
		}
		log.Printf("❌ [USAGE] Failed to record usage: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record usage",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}
