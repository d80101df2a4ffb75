package models

import (
	"time"
)

// ValueSnapshot captures business value at a point in time: output value (M),
// input cost (T), and a [0,1] synergy factor (s) feeding the value-growth formula.
type ValueSnapshot struct {
	Output  float64 `json:"outputValue"`
	Cost    float64 `json:"inputCost"`
	Synergy float64 `json:"synergyFactor"`
}

// UsageEvent is one append-only ledger entry: a user ran a solution for a task
// and produced measurable before/after value. Score and value growth are
// computed once at recording time and never change afterwards.
type UsageEvent struct {
	ID                 string        `json:"id"`
	TaskID             string        `json:"taskId"`
	SolutionID         string        `json:"solutionId"`
	UserID             string        `json:"userId"`
	UserRole           string        `json:"userRole"`
	Timestamp          time.Time     `json:"timestamp"`
	Before             ValueSnapshot `json:"before"`
	After              ValueSnapshot `json:"after"`
	DurationMinutes    float64       `json:"durationMinutes"`
	EffectivenessScore float64       `json:"effectivenessScore"`
	ValueGrowth        float64       `json:"valueGrowth"`
}

// RecordUsageRequest is the POST /api/usage body
type RecordUsageRequest struct {
	TaskID          string        `json:"taskId"`
	SolutionID      string        `json:"solutionId"`
	UserID          string        `json:"userId"`
	UserRole        string        `json:"userRole"`
	Before          ValueSnapshot `json:"before"`
	After           ValueSnapshot `json:"after"`
	DurationMinutes float64       `json:"durationMinutes"`
}

// Validate checks the request before any state is written.
// Returns a *ValidationError identifying the offending field.
func (r *RecordUsageRequest) Validate() error {
	if r.TaskID == "" {
		return NewValidationError("taskId", "required")
	}
	if r.SolutionID == "" {
		return NewValidationError("solutionId", "required")
	}
	if r.UserID == "" {
		return NewValidationError("userId", "required")
	}
	if r.DurationMinutes < 0 {
		return NewValidationError("durationMinutes", "must be non-negative")
	}
	if err := r.Before.validate("before"); err != nil {
		return err
	}
	return r.After.validate("after")
}

func (v ValueSnapshot) validate(prefix string) error {
	if v.Output < 0 {
		return NewValidationError(prefix+".outputValue", "must be non-negative")
	}
	if v.Cost < 0 {
		return NewValidationError(prefix+".inputCost", "must be non-negative")
	}
	if v.Synergy < 0 || v.Synergy > 1 {
		return NewValidationError(prefix+".synergyFactor", "must be in [0,1]")
	}
	return nil
}

// UserStats is the GET /api/users/:userId/stats response
type UserStats struct {
	UserID                string  `json:"userId"`
	TotalLogs             int     `json:"totalLogs"`
	AverageScore          float64 `json:"averageScore"`
	TasksContributed      int     `json:"tasksContributed"`
	SolutionsUsed         int     `json:"solutionsUsed"`
	StandardContributions int     `json:"standardContributions"`
}
