package models

import "time"

// DistributeRequest is the POST /api/distributions body
type DistributeRequest struct {
	TotalRewardPool int64     `json:"totalRewardPool"`
	WindowStart     time.Time `json:"windowStart"`
	WindowEnd       time.Time `json:"windowEnd"`
}

// Validate checks the distribution request
func (r *DistributeRequest) Validate() error {
	if r.TotalRewardPool < 0 {
		return NewValidationError("totalRewardPool", "must be non-negative")
	}
	if r.WindowEnd.Before(r.WindowStart) {
		return NewValidationError("windowEnd", "must not precede windowStart")
	}
	return nil
}

// ContributorShare is one contributor's slice of a distribution, sorted by
// reward descending in the output.
type ContributorShare struct {
	UserID                string  `json:"userId"`
	UserRole              string  `json:"userRole"`
	LogCount              int     `json:"logCount"`
	TotalScore            float64 `json:"totalScore"`
	StandardContributions int     `json:"standardContributions"`
	WeightedScore         float64 `json:"weightedScore"`
	ContributionPercent   float64 `json:"contributionPercent"`
	Reward                int64   `json:"reward"`
}

// Distribution is the result of one RetroPGF run: a pure, replayable
// computation over the ledger window. Rewards are floored to integers; the
// fractional remainder is reported as RoundingLoss, not redistributed.
type Distribution struct {
	ID                 string             `json:"id"`
	TotalRewardPool    int64              `json:"totalRewardPool"`
	WindowStart        time.Time          `json:"windowStart"`
	WindowEnd          time.Time          `json:"windowEnd"`
	RanAt              time.Time          `json:"ranAt"`
	EventCount         int                `json:"eventCount"`
	TotalWeightedScore float64            `json:"totalWeightedScore"`
	RoundingLoss       int64              `json:"roundingLoss"`
	Shares             []ContributorShare `json:"shares"`
}
