package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"praxis/internal/models"
)

// Memory is an in-process implementation of all store interfaces. It backs
// the test suite and zero-dependency local runs. All reads return copies so
// callers cannot mutate stored state.
type Memory struct {
	mu            sync.RWMutex
	events        []models.UsageEvent
	stats         map[string]*models.SolutionStats
	standards     map[string]*models.StandardRecord
	transitions   []models.StandardTransition
	distributions map[string]*models.Distribution
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		stats:         make(map[string]*models.SolutionStats),
		standards:     make(map[string]*models.StandardRecord),
		distributions: make(map[string]*models.Distribution),
	}
}

// Append implements LedgerStore
func (m *Memory) Append(ctx context.Context, ev *models.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

// Window implements LedgerStore
func (m *Memory) Window(ctx context.Context, start, end time.Time) ([]models.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UsageEvent
	for _, ev := range m.events {
		if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
			continue
		}
		out = append(out, ev)
	}
	sortEvents(out)
	return out, nil
}

// ByUser implements LedgerStore
func (m *Memory) ByUser(ctx context.Context, userID string) ([]models.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UsageEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

// Count implements LedgerStore
func (m *Memory) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events)), nil
}

func sortEvents(evs []models.UsageEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].Timestamp.Equal(evs[j].Timestamp) {
			return evs[i].ID < evs[j].ID
		}
		return evs[i].Timestamp.Before(evs[j].Timestamp)
	})
}

// Get implements StatsStore
func (m *Memory) Get(ctx context.Context, solutionID string) (*models.SolutionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[solutionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// Put implements StatsStore
func (m *Memory) Put(ctx context.Context, stats *models.SolutionStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.SolutionID] = stats.Clone()
	return nil
}

// Record implements Recorder. Neither in-memory write can fail, so the
// append and the fold are atomic with respect to callers.
func (m *Memory) Record(ctx context.Context, ev *models.UsageEvent, st *models.SolutionStats) error {
	if err := m.Append(ctx, ev); err != nil {
		return err
	}
	return m.Put(ctx, st)
}

// ByTask implements StatsStore
func (m *Memory) ByTask(ctx context.Context, taskID string) ([]models.SolutionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SolutionStats
	for _, s := range m.stats {
		if s.TaskID == taskID {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolutionID < out[j].SolutionID })
	return out, nil
}

// All implements StatsStore
func (m *Memory) All(ctx context.Context) ([]models.SolutionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SolutionStats
	for _, s := range m.stats {
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolutionID < out[j].SolutionID })
	return out, nil
}

// MaxUsageCount implements StatsStore
func (m *Memory) MaxUsageCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max int64
	for _, s := range m.stats {
		if s.UsageCount > max {
			max = s.UsageCount
		}
	}
	return max, nil
}

// GetStandard implements StandardStore.Get
func (m *Memory) GetStandard(ctx context.Context, taskID string) (*models.StandardRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.standards[taskID]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

// PutStandard implements StandardStore.Put
func (m *Memory) PutStandard(ctx context.Context, rec *models.StandardRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.standards[rec.TaskID] = &c
	return nil
}

// AllStandards implements StandardStore.All
func (m *Memory) AllStandards(ctx context.Context) ([]models.StandardRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.StandardRecord
	for _, rec := range m.standards {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

// AppendTransition implements StandardStore
func (m *Memory) AppendTransition(ctx context.Context, tr *models.StandardTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, *tr)
	return nil
}

// History implements StandardStore
func (m *Memory) History(ctx context.Context, taskID string) ([]models.StandardTransition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.StandardTransition
	for _, tr := range m.transitions {
		if tr.TaskID == taskID {
			out = append(out, tr)
		}
	}
	return out, nil
}

// Save implements DistributionStore
func (m *Memory) Save(ctx context.Context, d *models.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	c.Shares = append([]models.ContributorShare(nil), d.Shares...)
	m.distributions[d.ID] = &c
	return nil
}

// GetDistribution implements DistributionStore.Get
func (m *Memory) GetDistribution(ctx context.Context, id string) (*models.Distribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.distributions[id]
	if !ok {
		return nil, nil
	}
	c := *d
	c.Shares = append([]models.ContributorShare(nil), d.Shares...)
	return &c, nil
}

// standardStoreAdapter exposes Memory under the StandardStore method names
type standardStoreAdapter struct{ m *Memory }

func (a standardStoreAdapter) Get(ctx context.Context, taskID string) (*models.StandardRecord, error) {
	return a.m.GetStandard(ctx, taskID)
}
func (a standardStoreAdapter) Put(ctx context.Context, rec *models.StandardRecord) error {
	return a.m.PutStandard(ctx, rec)
}
func (a standardStoreAdapter) All(ctx context.Context) ([]models.StandardRecord, error) {
	return a.m.AllStandards(ctx)
}
func (a standardStoreAdapter) AppendTransition(ctx context.Context, tr *models.StandardTransition) error {
	return a.m.AppendTransition(ctx, tr)
}
func (a standardStoreAdapter) History(ctx context.Context, taskID string) ([]models.StandardTransition, error) {
	return a.m.History(ctx, taskID)
}

// Standards returns the memory store viewed as a StandardStore
func (m *Memory) Standards() StandardStore {
	return standardStoreAdapter{m}
}

// distributionStoreAdapter exposes Memory under the DistributionStore method names
type distributionStoreAdapter struct{ m *Memory }

func (a distributionStoreAdapter) Save(ctx context.Context, d *models.Distribution) error {
	return a.m.Save(ctx, d)
}
func (a distributionStoreAdapter) Get(ctx context.Context, id string) (*models.Distribution, error) {
	return a.m.GetDistribution(ctx, id)
}

// Distributions returns the memory store viewed as a DistributionStore
func (m *Memory) Distributions() DistributionStore {
	return distributionStoreAdapter{m}
}
