package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"praxis/internal/models"
	"praxis/internal/scoring"
	"praxis/internal/store"
)

const (
	rankingCacheTTL     = 30 * time.Second
	rankingCacheCleanup = 5 * time.Minute
)

// LedgerService owns the recordUsage path: validation, scoring, the append
// to the ledger, the stats fold and the standardization re-check. Writes for
// the same solution are serialized; different solutions proceed in parallel.
type LedgerService struct {
	ledger          store.LedgerStore
	stats           store.StatsStore
	standards       store.StandardStore
	scorer          *scoring.Scorer
	standardization *StandardizationService
	metrics         *Metrics

	rankings      *cache.Cache
	solutionLocks sync.Map // solutionID -> *sync.Mutex
}

// NewLedgerService creates the ledger service
func NewLedgerService(
	ledger store.LedgerStore,
	stats store.StatsStore,
	standards store.StandardStore,
	scorer *scoring.Scorer,
	standardization *StandardizationService,
	metrics *Metrics,
) *LedgerService {
	return &LedgerService{
		ledger:          ledger,
		stats:           stats,
		standards:       standards,
		scorer:          scorer,
		standardization: standardization,
		metrics:         metrics,
		rankings:        cache.New(rankingCacheTTL, rankingCacheCleanup),
	}
}

func (s *LedgerService) lockSolution(solutionID string) *sync.Mutex {
	l, _ := s.solutionLocks.LoadOrStore(solutionID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// RecordUsage validates and appends one usage event, folds it into the
// solution's stats and re-evaluates the task's standard. The returned event
// carries its score and value growth, computed once and frozen.
func (s *LedgerService) RecordUsage(ctx context.Context, req *models.RecordUsageRequest) (*models.UsageEvent, error) {
	started := time.Now()

	if err := req.Validate(); err != nil {
		var verr *models.ValidationError
		if s.metrics != nil && errors.As(err, &verr) {
			s.metrics.RecordValidationFailure(verr.Field)
		}
		return nil, err
	}

	lock := s.lockSolution(req.SolutionID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.stats.Get(ctx, req.SolutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load solution stats: %w", err)
	}
	if st == nil {
		st = models.NewSolutionStats(req.TaskID, req.SolutionID)
	} else if st.TaskID != req.TaskID {
		// A solution belongs to exactly one task
		return nil, models.NewValidationError("taskId",
			fmt.Sprintf("solution %s belongs to task %s", req.SolutionID, st.TaskID))
	}

	n := st.UsageCount + 1
	score := s.scorer.Score(req.Before, req.After, n)
	growth := s.scorer.ValueGrowth(req.Before, req.After)

	ev := &models.UsageEvent{
		ID:                 uuid.New().String(),
		TaskID:             req.TaskID,
		SolutionID:         req.SolutionID,
		UserID:             req.UserID,
		UserRole:           req.UserRole,
		Timestamp:          time.Now().UTC(),
		Before:             req.Before,
		After:              req.After,
		DurationMinutes:    req.DurationMinutes,
		EffectivenessScore: score,
		ValueGrowth:        growth,
	}

	st.Apply(ev)

	if rec, ok := s.ledger.(store.Recorder); ok {
		// Transactional stores append the event and fold the stats atomically
		if err := rec.Record(ctx, ev, st); err != nil {
			return nil, fmt.Errorf("failed to record usage event: %w", err)
		}
	} else {
		if err := s.ledger.Append(ctx, ev); err != nil {
			return nil, fmt.Errorf("failed to append usage event: %w", err)
		}
		if err := s.stats.Put(ctx, st); err != nil {
			// The event is durable but its fold is not. Surface the event ID so
			// the stats row can be rebuilt from the ledger.
			log.Printf("❌ Stats fold lost for event %s (solution %s), rebuild required: %v",
				ev.ID, ev.SolutionID, err)
			return nil, fmt.Errorf("failed to update solution stats: %w", err)
		}
	}

	if err := s.standardization.Evaluate(ctx, st); err != nil {
		// The event is already recorded; a failed re-evaluation is repaired
		// by the next qualifying event for this solution.
		log.Printf("⚠️  Standard re-evaluation failed for task %s: %v", req.TaskID, err)
	}

	s.rankings.Delete(req.TaskID)
	if s.metrics != nil {
		s.metrics.UsageEventsRecorded.Inc()
		s.metrics.RecordLatency.Observe(time.Since(started).Seconds())
	}
	return ev, nil
}

// SolutionRanking returns all known solutions for a task sorted by average
// score descending, each flagged with isStandard. Results are cached briefly.
func (s *LedgerService) SolutionRanking(ctx context.Context, taskID string) ([]models.RankedSolution, error) {
	if cached, found := s.rankings.Get(taskID); found {
		return cached.([]models.RankedSolution), nil
	}

	stats, err := s.stats.ByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task stats: %w", err)
	}

	standard, err := s.standards.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load standard record: %w", err)
	}

	ranking := make([]models.RankedSolution, 0, len(stats))
	for _, st := range stats {
		ranking = append(ranking, models.RankedSolution{
			SolutionID:           st.SolutionID,
			TaskID:               st.TaskID,
			UsageCount:           st.UsageCount,
			AverageScore:         st.AverageScore,
			AverageValueGrowth:   st.AverageValueGrowth,
			DistinctContributors: st.DistinctContributors(),
			IsStandard:           standard != nil && standard.SolutionID == st.SolutionID,
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].AverageScore == ranking[j].AverageScore {
			return ranking[i].SolutionID < ranking[j].SolutionID
		}
		return ranking[i].AverageScore > ranking[j].AverageScore
	})

	s.rankings.Set(taskID, ranking, cache.DefaultExpiration)
	return ranking, nil
}

// TaskSummaries returns one summary per known task
func (s *LedgerService) TaskSummaries(ctx context.Context) ([]models.TaskSummary, error) {
	stats, err := s.stats.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load solution stats: %w", err)
	}

	standards, err := s.standards.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load standard records: %w", err)
	}
	standardByTask := make(map[string]string, len(standards))
	for _, rec := range standards {
		standardByTask[rec.TaskID] = rec.SolutionID
	}

	byTask := make(map[string]*models.TaskSummary)
	for _, st := range stats {
		sum, ok := byTask[st.TaskID]
		if !ok {
			sum = &models.TaskSummary{TaskID: st.TaskID}
			byTask[st.TaskID] = sum
		}
		sum.SolutionCount++
		sum.TotalUsage += st.UsageCount
	}

	out := make([]models.TaskSummary, 0, len(byTask))
	for taskID, sum := range byTask {
		if sol, ok := standardByTask[taskID]; ok {
			sum.StandardSolution = sol
			sum.HasStandard = true
		}
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

// UserStats aggregates a user's contribution profile from the ledger.
// An unknown user yields zeroes, not an error.
func (s *LedgerService) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	events, err := s.ledger.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user events: %w", err)
	}

	out := &models.UserStats{UserID: userID}
	if len(events) == 0 {
		return out, nil
	}

	standards, err := s.standards.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load standard records: %w", err)
	}
	standardByTask := make(map[string]string, len(standards))
	for _, rec := range standards {
		standardByTask[rec.TaskID] = rec.SolutionID
	}

	tasks := make(map[string]bool)
	solutions := make(map[string]bool)
	var totalScore float64
	for _, ev := range events {
		totalScore += ev.EffectivenessScore
		tasks[ev.TaskID] = true
		solutions[ev.SolutionID] = true
		if standardByTask[ev.TaskID] == ev.SolutionID {
			out.StandardContributions++
		}
	}

	out.TotalLogs = len(events)
	out.AverageScore = totalScore / float64(len(events))
	out.TasksContributed = len(tasks)
	out.SolutionsUsed = len(solutions)
	return out, nil
}

// StandardHistory returns the promotion/replacement history for a task
func (s *LedgerService) StandardHistory(ctx context.Context, taskID string) ([]models.StandardTransition, error) {
	history, err := s.standards.History(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load standard history: %w", err)
	}
	return history, nil
}
