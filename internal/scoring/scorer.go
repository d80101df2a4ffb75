package scoring

import (
	"math"
	"sync"

	"praxis/internal/models"
)

// Scorer computes the bounded effectiveness score and the value-growth figure
// for a single usage event. It is a pure function of its inputs plus the
// injected usage high-water mark; parameters are swappable at runtime for
// config hot-reload.
type Scorer struct {
	mu     sync.RWMutex
	params Params
	high   *UsageHighWater
}

// NewScorer creates a scorer with validated parameters
func NewScorer(params Params, high *UsageHighWater) (*Scorer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{params: params, high: high}, nil
}

// Params returns the current scoring parameters
func (s *Scorer) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams swaps the scoring parameters after validating them
func (s *Scorer) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
	return nil
}

// HighWater exposes the shared usage high-water mark
func (s *Scorer) HighWater() *UsageHighWater {
	return s.high
}

// Score computes the effectiveness score for an event. usageCount is the
// solution's usage count with this event already counted; the high-water mark
// is raised to it before the frequency term is normalized, so frequency is a
// log-scaled, globally-relative signal. The result is clamped to [0,1]
// and rounded to 3 decimals.
func (s *Scorer) Score(before, after models.ValueSnapshot, usageCount int64) float64 {
	s.mu.RLock()
	p := s.params
	s.mu.RUnlock()

	deltaM := 0.0
	if before.Output > 0 {
		deltaM = (after.Output - before.Output) / before.Output
	}
	deltaM = clamp(deltaM, 0, p.Caps.ValueGain)

	deltaT := 0.0
	if before.Cost > 0 {
		deltaT = (before.Cost - after.Cost) / before.Cost
	}
	deltaT = clamp(deltaT, 0, p.Caps.CostReduction)

	s.high.RaiseTo(usageCount)
	maxUsage := s.high.Value()
	usageNorm := 0.0
	if maxUsage > 0 {
		usageNorm = math.Log(float64(usageCount)+1) / math.Log(float64(maxUsage)+1)
	}

	deltaS := 0.0
	switch {
	case before.Synergy > 0:
		deltaS = (after.Synergy - before.Synergy) / before.Synergy
	case after.Synergy > 0:
		deltaS = 1.0
	}
	deltaS = clamp(deltaS, 0, p.Caps.Synergy)

	score := p.Weights.ValueGain*deltaM +
		p.Weights.CostReduction*deltaT +
		p.Weights.Usage*usageNorm +
		p.Weights.Synergy*deltaS

	// Caps above 1.0 let the weighted sum exceed 1, so the final score is
	// clamped rather than each delta normalized by its cap.
	score = clamp(score, 0, 1)

	return math.Round(score*1000) / 1000
}

// ValueGrowth computes the unclamped diagnostic growth figure:
// V(x) = (M - T) * (1 + s)^t, growth = (V(after) - V(before)) / |V(before)|.
// Used only for standardization eligibility, never for reward weighting.
func (s *Scorer) ValueGrowth(before, after models.ValueSnapshot) float64 {
	s.mu.RLock()
	t := s.params.SynergyExponent
	s.mu.RUnlock()

	vBefore := snapshotValue(before, t)
	vAfter := snapshotValue(after, t)

	if vBefore > 0 {
		return (vAfter - vBefore) / math.Abs(vBefore)
	}
	if vAfter > 0 {
		return 1.0
	}
	return 0.0
}

func snapshotValue(v models.ValueSnapshot, t float64) float64 {
	return (v.Output - v.Cost) * math.Pow(1+v.Synergy, t)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
