package models

import "time"

// QualifyingStats is the snapshot of the statistics that justified a
// standardization, frozen at the moment of promotion.
type QualifyingStats struct {
	UsageCount           int64   `json:"usageCount"`
	AverageScore         float64 `json:"averageScore"`
	AverageValueGrowth   float64 `json:"averageValueGrowth"`
	DistinctContributors int     `json:"distinctContributors"`
}

// StandardRecord marks the current standard solution for a task.
// At most one exists per task at any time.
type StandardRecord struct {
	TaskID         string          `json:"taskId"`
	SolutionID     string          `json:"solutionId"`
	StandardizedAt time.Time       `json:"standardizedAt"`
	Snapshot       QualifyingStats `json:"snapshot"`
}

// StandardTransition is one row of the standard history: a promotion or a
// replacement. Replacements are never silent; each one is appended here and
// surfaced as a standard_change notification.
type StandardTransition struct {
	ID             string          `json:"id"`
	TaskID         string          `json:"taskId"`
	FromSolutionID string          `json:"fromSolutionId,omitempty"`
	ToSolutionID   string          `json:"toSolutionId"`
	OccurredAt     time.Time       `json:"occurredAt"`
	AffectedUsers  int             `json:"affectedUsers"`
	Snapshot       QualifyingStats `json:"snapshot"`
}
