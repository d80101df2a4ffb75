package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"praxis/internal/services"
)

// TaskHandler handles task and ranking HTTP requests
type TaskHandler struct {
	ledgerService *services.LedgerService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(ledgerService *services.LedgerService) *TaskHandler {
	return &TaskHandler{
		ledgerService: ledgerService,
	}
}

// List returns a summary of every task seen in the ledger
// GET /api/tasks
func (h *TaskHandler) List(c *fiber.Ctx) error {
	summaries, err := h.ledgerService.TaskSummaries(c.Context())
	if err != nil {
		log.Printf("❌ [TASK] Failed to list tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list tasks",
		})
	}

	return c.JSON(fiber.Map{
		"tasks": summaries,
		"count": len(summaries),
	})
}

// Ranking returns a task's solutions ordered by average effectiveness
// GET /api/tasks/:taskId/ranking
func (h *TaskHandler) Ranking(c *fiber.Ctx) error {
	taskID := c.Params("taskId")

	ranking, err := h.ledgerService.SolutionRanking(c.Context(), taskID)
	if err != nil {
		log.Printf("❌ [TASK] Failed to rank solutions for task %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rank solutions",
		})
	}

	return c.JSON(fiber.Map{
		"taskId":    taskID,
		"solutions": ranking,
	})
}

// StandardHistory returns the full standard transition log for a task
// GET /api/tasks/:taskId/standard/history
func (h *TaskHandler) StandardHistory(c *fiber.Ctx) error {
	taskID := c.Params("taskId")

	history, err := h.ledgerService.StandardHistory(c.Context(), taskID)
	if err != nil {
		log.Printf("❌ [TASK] Failed to load standard history for task %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load standard history",
		})
	}

	return c.JSON(fiber.Map{
		"taskId":  taskID,
		"history": history,
	})
}
