package services

import (
	"context"
	"log"

	"praxis/internal/models"
)

// Notifier delivers standardization notifications to external subscribers.
// Delivery is best-effort and must never block or fail the underlying write.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// FanoutNotifier delivers to every registered sink
type FanoutNotifier struct {
	sinks []Notifier
}

// NewFanoutNotifier creates a notifier that fans out to the given sinks
func NewFanoutNotifier(sinks ...Notifier) *FanoutNotifier {
	return &FanoutNotifier{sinks: sinks}
}

// Add registers another sink
func (f *FanoutNotifier) Add(n Notifier) {
	f.sinks = append(f.sinks, n)
}

// Notify implements Notifier
func (f *FanoutNotifier) Notify(ctx context.Context, n models.Notification) {
	for _, sink := range f.sinks {
		sink.Notify(ctx, n)
	}
}

// LogNotifier writes notifications to the server log. Always registered so
// transitions are visible even with no external subscribers.
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(ctx context.Context, n models.Notification) {
	switch n.Type {
	case models.NotificationStandardChange:
		log.Printf("⚠️  [STANDARD] Task %s: standard replaced %s → %s (affected users: %d)",
			n.TaskID, n.PreviousSolutionID, n.SolutionID, n.AffectedUsers)
	default:
		log.Printf("⭐ [STANDARD] Task %s: solution %s promoted to standard", n.TaskID, n.SolutionID)
	}
}
