package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithTask returns a logger with task context fields attached.
// Use this for all logging within a standardization evaluation.
func WithTask(taskID, solutionID string) *slog.Logger {
	return slog.With(
		"task_id", taskID,
		"solution_id", solutionID,
	)
}

// WithDistribution returns a logger scoped to one distribution run
func WithDistribution(distributionID string) *slog.Logger {
	return slog.With("distribution_id", distributionID)
}
