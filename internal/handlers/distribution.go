package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"praxis/internal/models"
	"praxis/internal/services"
)

// DistributionHandler handles reward distribution HTTP requests
type DistributionHandler struct {
	distributionService *services.DistributionService
}

// NewDistributionHandler creates a new distribution handler
func NewDistributionHandler(distributionService *services.DistributionService) *DistributionHandler {
	return &DistributionHandler{
		distributionService: distributionService,
	}
}

// Run executes a distribution over a time window and persists the result
// POST /api/distributions
func (h *DistributionHandler) Run(c *fiber.Ctx) error {
	var req models.DistributeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	distribution, err := h.distributionService.Distribute(c.Context(), &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": verr.Reason,
				"field": verr.Field,
			})
		}
		log.Printf("❌ [DISTRIBUTION] Failed to run distribution: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run distribution",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(distribution)
}

// Get returns a stored distribution
// GET /api/distributions/:id
func (h *DistributionHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	distribution, err := h.distributionService.Get(c.Context(), id)
	if err != nil {
		log.Printf("❌ [DISTRIBUTION] Failed to get distribution %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get distribution",
		})
	}
	if distribution == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Distribution not found",
		})
	}

	return c.JSON(distribution)
}

// Report downloads a stored distribution as an xlsx payout report
// GET /api/distributions/:id/report
func (h *DistributionHandler) Report(c *fiber.Ctx) error {
	id := c.Params("id")

	report, err := h.distributionService.Report(c.Context(), id)
	if err != nil {
		log.Printf("❌ [DISTRIBUTION] Failed to build report for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build report",
		})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Distribution not found",
		})
	}

	buf, err := report.WriteToBuffer()
	if err != nil {
		log.Printf("❌ [DISTRIBUTION] Failed to encode report for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encode report",
		})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="distribution-%s.xlsx"`, id))
	return c.Send(buf.Bytes())
}
