package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"praxis/internal/models"
	"praxis/internal/scoring"
	"praxis/internal/store"
)

// StandardizationService decides, per task, whether a solution qualifies as
// the standard. Evaluation runs synchronously after every usage event for the
// solution just used; there is no background sweep, so a standard can only
// be displaced when a challenger is actually used enough to cross the
// thresholds itself.
type StandardizationService struct {
	standards store.StandardStore
	stats     store.StatsStore
	notifier  Notifier
	metrics   *Metrics

	mu         sync.RWMutex
	thresholds scoring.Thresholds

	taskLocks sync.Map // taskID -> *sync.Mutex
}

// NewStandardizationService creates a standardization service
func NewStandardizationService(
	standards store.StandardStore,
	stats store.StatsStore,
	thresholds scoring.Thresholds,
	notifier Notifier,
	metrics *Metrics,
) (*StandardizationService, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &StandardizationService{
		standards:  standards,
		stats:      stats,
		thresholds: thresholds,
		notifier:   notifier,
		metrics:    metrics,
	}, nil
}

// Thresholds returns the current promotion thresholds
func (s *StandardizationService) Thresholds() scoring.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds swaps the promotion thresholds after validating them
func (s *StandardizationService) SetThresholds(t scoring.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
	return nil
}

func (s *StandardizationService) lockTask(taskID string) *sync.Mutex {
	l, _ := s.taskLocks.LoadOrStore(taskID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Evaluate re-checks the standard for the task of the solution whose stats
// were just updated. Re-qualification of the current standard is a no-op;
// a different qualifying solution replaces it with a standard_change warning.
func (s *StandardizationService) Evaluate(ctx context.Context, st *models.SolutionStats) error {
	t := s.Thresholds()

	meetsScore := st.AverageScore >= t.MinScore
	meetsUsage := st.UsageCount >= t.MinUsageCount
	meetsGrowth := st.AverageValueGrowth >= t.MinValueGrowth
	if !meetsScore || !meetsUsage || !meetsGrowth {
		return nil
	}

	lock := s.lockTask(st.TaskID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.standards.Get(ctx, st.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load standard record: %w", err)
	}

	if current != nil && current.SolutionID == st.SolutionID {
		// Idempotent re-qualification
		return nil
	}

	now := time.Now().UTC()
	snapshot := models.QualifyingStats{
		UsageCount:           st.UsageCount,
		AverageScore:         st.AverageScore,
		AverageValueGrowth:   st.AverageValueGrowth,
		DistinctContributors: st.DistinctContributors(),
	}
	rec := &models.StandardRecord{
		TaskID:         st.TaskID,
		SolutionID:     st.SolutionID,
		StandardizedAt: now,
		Snapshot:       snapshot,
	}
	tr := &models.StandardTransition{
		ID:           uuid.New().String(),
		TaskID:       st.TaskID,
		ToSolutionID: st.SolutionID,
		OccurredAt:   now,
		Snapshot:     snapshot,
	}
	notification := models.Notification{
		Type:       models.NotificationStandardization,
		TaskID:     st.TaskID,
		SolutionID: st.SolutionID,
		OccurredAt: now,
		Snapshot:   snapshot,
	}

	if current != nil {
		// Replacement: downstream consumers may be built around the outgoing
		// standard, so the change is surfaced, not blocked.
		affected := s.estimateAffectedUsers(ctx, current.SolutionID)
		tr.FromSolutionID = current.SolutionID
		tr.AffectedUsers = affected
		notification.Type = models.NotificationStandardChange
		notification.PreviousSolutionID = current.SolutionID
		notification.AffectedUsers = affected
	}

	if err := s.standards.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to store standard record: %w", err)
	}
	if err := s.standards.AppendTransition(ctx, tr); err != nil {
		return fmt.Errorf("failed to record standard transition: %w", err)
	}

	if s.metrics != nil {
		if current != nil {
			s.metrics.StandardChanges.Inc()
		} else {
			s.metrics.Standardizations.Inc()
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, notification)
	}
	return nil
}

// estimateAffectedUsers counts distinct contributors of the outgoing standard
func (s *StandardizationService) estimateAffectedUsers(ctx context.Context, solutionID string) int {
	st, err := s.stats.Get(ctx, solutionID)
	if err != nil || st == nil {
		return 0
	}
	return st.DistinctContributors()
}
