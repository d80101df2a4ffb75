// Package store defines the persistence boundary of the engine. Core services
// depend only on these interfaces; the in-memory implementation backs tests
// and the SQL implementation backs production.
package store

import (
	"context"
	"time"

	"praxis/internal/models"
)

// LedgerStore persists usage events. The ledger is append-only: events are
// never edited or deleted, so distributions can be replayed from it at any
// later point.
type LedgerStore interface {
	// Append stores a new event. Append is atomic per event.
	Append(ctx context.Context, ev *models.UsageEvent) error

	// Window returns events with windowStart <= timestamp <= windowEnd,
	// ordered by (timestamp, id) so replays are deterministic.
	Window(ctx context.Context, start, end time.Time) ([]models.UsageEvent, error)

	// ByUser returns all events recorded by a user, ordered by (timestamp, id)
	ByUser(ctx context.Context, userID string) ([]models.UsageEvent, error)

	// Count returns the total number of events in the ledger
	Count(ctx context.Context) (int64, error)
}

// Recorder atomically appends an event and folds it into the solution's
// stats. Stores backed by a transactional database implement it so the
// ledger can never hold an event whose stats fold was lost.
type Recorder interface {
	Record(ctx context.Context, ev *models.UsageEvent, st *models.SolutionStats) error
}

// StatsStore persists per-solution running aggregates, keyed by solutionId
type StatsStore interface {
	// Get returns the stats for a solution, or (nil, nil) if never used
	Get(ctx context.Context, solutionID string) (*models.SolutionStats, error)

	// Put creates or replaces the stats record
	Put(ctx context.Context, stats *models.SolutionStats) error

	// ByTask returns all solution stats for a task
	ByTask(ctx context.Context, taskID string) ([]models.SolutionStats, error)

	// All returns every stats record
	All(ctx context.Context) ([]models.SolutionStats, error)

	// MaxUsageCount returns the highest usage count across all solutions,
	// used to reconstruct the scorer's high-water mark after a reload
	MaxUsageCount(ctx context.Context) (int64, error)
}

// StandardStore persists standard records (at most one per task) and the
// append-only transition history.
type StandardStore interface {
	// Get returns the current standard for a task, or (nil, nil) if none
	Get(ctx context.Context, taskID string) (*models.StandardRecord, error)

	// Put creates or replaces the standard record for a task
	Put(ctx context.Context, rec *models.StandardRecord) error

	// All returns every current standard record
	All(ctx context.Context) ([]models.StandardRecord, error)

	// AppendTransition records a promotion or replacement in the history
	AppendTransition(ctx context.Context, tr *models.StandardTransition) error

	// History returns a task's transitions, oldest first
	History(ctx context.Context, taskID string) ([]models.StandardTransition, error)
}

// DistributionStore persists completed distribution runs
type DistributionStore interface {
	Save(ctx context.Context, d *models.Distribution) error

	// Get returns a stored distribution, or (nil, nil) if unknown
	Get(ctx context.Context, id string) (*models.Distribution, error)
}
