package scoring

import (
	"math"
	"sync"
	"testing"

	"praxis/internal/models"
)

func newTestScorer(t *testing.T, maxUsage int64) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultParams(), NewUsageHighWater(maxUsage))
	if err != nil {
		t.Fatalf("Failed to create scorer: %v", err)
	}
	return s
}

func TestScore_KnownScenario(t *testing.T) {
	s := newTestScorer(t, 100)

	before := models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0.2}
	after := models.ValueSnapshot{Output: 150, Cost: 40, Synergy: 0.3}

	// deltaM=0.5, deltaT=0.2, usageNorm=ln(11)/ln(101), deltaS=0.5
	got := s.Score(before, after, 10)

	want := math.Round((0.40*0.5+0.40*0.2+0.10*(math.Log(11)/math.Log(101))+0.10*0.5)*1000) / 1000
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
	if got != 0.382 {
		t.Errorf("Score = %v, want 0.382", got)
	}
}

func TestScore_Bounds(t *testing.T) {
	s := newTestScorer(t, 1)

	tests := []struct {
		name       string
		before     models.ValueSnapshot
		after      models.ValueSnapshot
		usageCount int64
	}{
		{
			name:       "no change",
			before:     models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0.5},
			after:      models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0.5},
			usageCount: 1,
		},
		{
			name:       "extreme gains hit the caps",
			before:     models.ValueSnapshot{Output: 1, Cost: 1000, Synergy: 0.01},
			after:      models.ValueSnapshot{Output: 100000, Cost: 0, Synergy: 1},
			usageCount: 1000000,
		},
		{
			name:       "regression clamps to zero",
			before:     models.ValueSnapshot{Output: 100, Cost: 10, Synergy: 0.9},
			after:      models.ValueSnapshot{Output: 10, Cost: 100, Synergy: 0.1},
			usageCount: 1,
		},
		{
			name:       "zero baselines",
			before:     models.ValueSnapshot{},
			after:      models.ValueSnapshot{Output: 50, Cost: 10, Synergy: 0.5},
			usageCount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.before, tt.after, tt.usageCount)
			if got < 0 || got > 1 {
				t.Errorf("Score = %v, want within [0,1]", got)
			}
		})
	}
}

func TestScore_ClampsWhenAllCapsSaturate(t *testing.T) {
	s := newTestScorer(t, 1)

	// All four deltas saturate their caps; the unclamped weighted sum is
	// 0.40*2.0 + 0.40*0.95 + 0.10*1 + 0.10*1 = 1.38.
	before := models.ValueSnapshot{Output: 1, Cost: 1000, Synergy: 0.01}
	after := models.ValueSnapshot{Output: 100000, Cost: 0, Synergy: 1}

	got := s.Score(before, after, 1)
	if got != 1.0 {
		t.Errorf("Score = %v, want exactly 1.0", got)
	}
}

func TestScore_ZeroBaselineDeltas(t *testing.T) {
	s := newTestScorer(t, 100)

	// Output and cost deltas are defined as 0 when the before side is 0; a
	// synergy appearing from 0 counts as full improvement.
	before := models.ValueSnapshot{Output: 0, Cost: 0, Synergy: 0}
	after := models.ValueSnapshot{Output: 500, Cost: 100, Synergy: 0.4}

	got := s.Score(before, after, 10)
	want := math.Round((0.10*(math.Log(11)/math.Log(101))+0.10*1.0)*1000) / 1000
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_RaisesHighWater(t *testing.T) {
	high := NewUsageHighWater(10)
	s, err := NewScorer(DefaultParams(), high)
	if err != nil {
		t.Fatalf("Failed to create scorer: %v", err)
	}

	before := models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0.2}
	after := models.ValueSnapshot{Output: 150, Cost: 40, Synergy: 0.3}

	// An event whose count exceeds the high-water mark becomes the new
	// maximum, so its frequency term normalizes to 1.
	s.Score(before, after, 42)
	if high.Value() != 42 {
		t.Errorf("high-water = %d, want 42", high.Value())
	}

	// A smaller count never lowers it
	s.Score(before, after, 5)
	if high.Value() != 42 {
		t.Errorf("high-water = %d after smaller count, want 42", high.Value())
	}
}

func TestValueGrowth(t *testing.T) {
	s := newTestScorer(t, 100)

	tests := []struct {
		name   string
		before models.ValueSnapshot
		after  models.ValueSnapshot
		want   float64
	}{
		{
			name:   "positive growth",
			before: models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0}, // V=50
			after:  models.ValueSnapshot{Output: 150, Cost: 50, Synergy: 0}, // V=100
			want:   1.0,
		},
		{
			name:   "synergy compounds",
			before: models.ValueSnapshot{Output: 100, Cost: 0, Synergy: 0},   // V=100
			after:  models.ValueSnapshot{Output: 100, Cost: 0, Synergy: 0.5}, // V=150
			want:   0.5,
		},
		{
			name:   "zero before, positive after",
			before: models.ValueSnapshot{Output: 50, Cost: 50, Synergy: 0.2},
			after:  models.ValueSnapshot{Output: 100, Cost: 50, Synergy: 0.2},
			want:   1.0,
		},
		{
			name:   "zero before, zero after",
			before: models.ValueSnapshot{},
			after:  models.ValueSnapshot{},
			want:   0.0,
		},
		{
			name:   "decline",
			before: models.ValueSnapshot{Output: 200, Cost: 100, Synergy: 0}, // V=100
			after:  models.ValueSnapshot{Output: 150, Cost: 100, Synergy: 0}, // V=50
			want:   -0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ValueGrowth(tt.before, tt.after)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ValueGrowth = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetParams_RejectsInvalid(t *testing.T) {
	s := newTestScorer(t, 100)

	bad := DefaultParams()
	bad.Weights.ValueGain = 0.9 // weights no longer sum to 1

	if err := s.SetParams(bad); err == nil {
		t.Fatal("Expected error for weights not summing to 1")
	}

	// Original params untouched after a rejected swap
	if s.Params().Weights.ValueGain != 0.40 {
		t.Errorf("ValueGain weight = %v, want 0.40", s.Params().Weights.ValueGain)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{name: "defaults", mutate: func(p *Params) {}, ok: true},
		{name: "negative weight", mutate: func(p *Params) { p.Weights.Usage = -0.1 }, ok: false},
		{name: "weights sum too high", mutate: func(p *Params) { p.Weights.Synergy = 0.5 }, ok: false},
		{name: "zero cap", mutate: func(p *Params) { p.Caps.CostReduction = 0 }, ok: false},
		{name: "zero exponent", mutate: func(p *Params) { p.SynergyExponent = 0 }, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Thresholds)
		ok     bool
	}{
		{name: "defaults", mutate: func(th *Thresholds) {}, ok: true},
		{name: "score above 1", mutate: func(th *Thresholds) { th.MinScore = 1.5 }, ok: false},
		{name: "zero score", mutate: func(th *Thresholds) { th.MinScore = 0 }, ok: false},
		{name: "zero usage count", mutate: func(th *Thresholds) { th.MinUsageCount = 0 }, ok: false},
		{name: "negative growth", mutate: func(th *Thresholds) { th.MinValueGrowth = -1 }, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			err := th.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestUsageHighWater_Concurrent(t *testing.T) {
	high := NewUsageHighWater(0)

	var wg sync.WaitGroup
	for i := int64(1); i <= 100; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			high.RaiseTo(n)
		}(i)
	}
	wg.Wait()

	if high.Value() != 100 {
		t.Errorf("high-water = %d, want 100", high.Value())
	}
}
