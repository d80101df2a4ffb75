package models

import "time"

// SolutionStats holds the running aggregates for one solution. A solution
// belongs to exactly one task. Averages are never edited directly; they are
// derived by folding each new event through Apply.
type SolutionStats struct {
	SolutionID            string          `json:"solutionId"`
	TaskID                string          `json:"taskId"`
	UsageCount            int64           `json:"usageCount"`
	CumulativeScore       float64         `json:"cumulativeScore"`
	AverageScore          float64         `json:"averageScore"`
	CumulativeValueGrowth float64         `json:"cumulativeValueGrowth"`
	AverageValueGrowth    float64         `json:"averageValueGrowth"`
	Contributors          map[string]bool `json:"-"`
	FirstUsedAt           time.Time       `json:"firstUsedAt"`
	LastUsedAt            time.Time       `json:"lastUsedAt"`
}

// NewSolutionStats creates an empty stats record for a (task, solution) pair
func NewSolutionStats(taskID, solutionID string) *SolutionStats {
	return &SolutionStats{
		SolutionID:   solutionID,
		TaskID:       taskID,
		Contributors: make(map[string]bool),
	}
}

// Apply folds one usage event into the running aggregates
func (s *SolutionStats) Apply(ev *UsageEvent) {
	if s.UsageCount == 0 {
		s.FirstUsedAt = ev.Timestamp
	}
	s.UsageCount++
	s.CumulativeScore += ev.EffectivenessScore
	s.AverageScore = s.CumulativeScore / float64(s.UsageCount)
	s.CumulativeValueGrowth += ev.ValueGrowth
	s.AverageValueGrowth = s.CumulativeValueGrowth / float64(s.UsageCount)
	if s.Contributors == nil {
		s.Contributors = make(map[string]bool)
	}
	s.Contributors[ev.UserID] = true
	s.LastUsedAt = ev.Timestamp
}

// DistinctContributors returns the number of unique users of this solution
func (s *SolutionStats) DistinctContributors() int {
	return len(s.Contributors)
}

// Clone returns a deep copy so callers can't mutate stored aggregates
func (s *SolutionStats) Clone() *SolutionStats {
	c := *s
	c.Contributors = make(map[string]bool, len(s.Contributors))
	for u := range s.Contributors {
		c.Contributors[u] = true
	}
	return &c
}

// RankedSolution is one entry of the GET /api/tasks/:taskId/ranking response
type RankedSolution struct {
	SolutionID           string  `json:"solutionId"`
	TaskID               string  `json:"taskId"`
	UsageCount           int64   `json:"usageCount"`
	AverageScore         float64 `json:"averageScore"`
	AverageValueGrowth   float64 `json:"averageValueGrowth"`
	DistinctContributors int     `json:"distinctContributors"`
	IsStandard           bool    `json:"isStandard"`
}

// TaskSummary is one entry of the GET /api/tasks response
type TaskSummary struct {
	TaskID            string `json:"taskId"`
	SolutionCount     int    `json:"solutionCount"`
	TotalUsage        int64  `json:"totalUsage"`
	StandardSolution  string `json:"standardSolution,omitempty"`
	HasStandard       bool   `json:"hasStandard"`
}
