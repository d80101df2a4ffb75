package scoring

import (
	"fmt"
	"math"

	"praxis/internal/models"
)

// Weights for the four score components. They must sum to 1 so that the
// final score stays in [0,1] given capped components.
type Weights struct {
	ValueGain     float64 `yaml:"valueGain" json:"valueGain"`
	CostReduction float64 `yaml:"costReduction" json:"costReduction"`
	Usage         float64 `yaml:"usage" json:"usage"`
	Synergy       float64 `yaml:"synergy" json:"synergy"`
}

// Caps clamp the normalized deltas before weighting
type Caps struct {
	ValueGain     float64 `yaml:"valueGain" json:"valueGain"`         // default 2.0 (+200%)
	CostReduction float64 `yaml:"costReduction" json:"costReduction"` // default 0.95 (95% cost cut)
	Synergy       float64 `yaml:"synergy" json:"synergy"`             // default 1.0
}

// Params configures the effectiveness scorer and the value-growth formula
type Params struct {
	Weights         Weights `yaml:"weights" json:"weights"`
	Caps            Caps    `yaml:"caps" json:"caps"`
	SynergyExponent float64 `yaml:"synergyExponent" json:"synergyExponent"`
}

// Thresholds gate the non-standard → standardized transition
type Thresholds struct {
	MinScore       float64 `yaml:"minScore" json:"minScore"`
	MinUsageCount  int64   `yaml:"minUsageCount" json:"minUsageCount"`
	MinValueGrowth float64 `yaml:"minValueGrowth" json:"minValueGrowth"`
}

// weightSumTolerance allows for float representation of human-written weights
const weightSumTolerance = 1e-6

// DefaultParams returns the stock scoring configuration
func DefaultParams() Params {
	return Params{
		Weights: Weights{
			ValueGain:     0.40,
			CostReduction: 0.40,
			Usage:         0.10,
			Synergy:       0.10,
		},
		Caps: Caps{
			ValueGain:     2.0,
			CostReduction: 0.95,
			Synergy:       1.0,
		},
		SynergyExponent: 1,
	}
}

// DefaultThresholds returns the stock standardization gates
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinScore:       0.80,
		MinUsageCount:  50,
		MinValueGrowth: 0.15,
	}
}

// Validate rejects unusable scoring parameters at configuration-load time
func (p Params) Validate() error {
	for name, w := range map[string]float64{
		"weights.valueGain":     p.Weights.ValueGain,
		"weights.costReduction": p.Weights.CostReduction,
		"weights.usage":         p.Weights.Usage,
		"weights.synergy":       p.Weights.Synergy,
	} {
		if w < 0 {
			return models.NewConfigError(name, "must be non-negative")
		}
	}

	sum := p.Weights.ValueGain + p.Weights.CostReduction + p.Weights.Usage + p.Weights.Synergy
	if math.Abs(sum-1.0) > weightSumTolerance {
		return models.NewConfigError("weights", fmt.Sprintf("must sum to 1.0, got %.6f", sum))
	}

	for name, c := range map[string]float64{
		"caps.valueGain":     p.Caps.ValueGain,
		"caps.costReduction": p.Caps.CostReduction,
		"caps.synergy":       p.Caps.Synergy,
	} {
		if c <= 0 {
			return models.NewConfigError(name, "must be positive")
		}
	}

	if p.SynergyExponent <= 0 {
		return models.NewConfigError("synergyExponent", "must be positive")
	}

	return nil
}

// Validate rejects unusable standardization thresholds
func (t Thresholds) Validate() error {
	if t.MinScore <= 0 || t.MinScore > 1 {
		return models.NewConfigError("thresholds.minScore", "must be in (0,1]")
	}
	if t.MinUsageCount < 1 {
		return models.NewConfigError("thresholds.minUsageCount", "must be at least 1")
	}
	if t.MinValueGrowth < 0 {
		return models.NewConfigError("thresholds.minValueGrowth", "must be non-negative")
	}
	return nil
}
