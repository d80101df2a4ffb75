package services

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"praxis/internal/models"
	"praxis/internal/store"
)

func newTestDistribution(t *testing.T, bonus float64) (*DistributionService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewDistributionService(mem, mem.Standards(), mem.Distributions(), nil, bonus, nil)
	return svc, mem
}

func seedLedger(t *testing.T, mem *store.Memory, base time.Time) {
	t.Helper()
	ctx := context.Background()

	events := []models.UsageEvent{
		{ID: "ev-1", TaskID: "t1", SolutionID: "sol-a", UserID: "alice", UserRole: "analyst", EffectivenessScore: 0.8, Timestamp: base},
		{ID: "ev-2", TaskID: "t1", SolutionID: "sol-a", UserID: "alice", UserRole: "analyst", EffectivenessScore: 0.6, Timestamp: base.Add(time.Hour)},
		{ID: "ev-3", TaskID: "t1", SolutionID: "sol-b", UserID: "bob", UserRole: "engineer", EffectivenessScore: 0.4, Timestamp: base.Add(2 * time.Hour)},
		{ID: "ev-4", TaskID: "t2", SolutionID: "sol-c", UserID: "carol", UserRole: "analyst", EffectivenessScore: 0.2, Timestamp: base.Add(3 * time.Hour)},
	}
	for i := range events {
		if err := mem.Append(ctx, &events[i]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// sol-a is the standard for t1, so alice's two events carry the bonus
	if err := mem.Standards().Put(ctx, &models.StandardRecord{TaskID: "t1", SolutionID: "sol-a"}); err != nil {
		t.Fatalf("Put standard failed: %v", err)
	}
}

func TestCompute_SharesAndBonus(t *testing.T) {
	svc, mem := newTestDistribution(t, 0.2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	d, err := svc.Compute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 1000,
		WindowStart:     base,
		WindowEnd:       base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if d.EventCount != 4 {
		t.Errorf("EventCount = %d, want 4", d.EventCount)
	}
	if len(d.Shares) != 3 {
		t.Fatalf("Got %d shares, want 3", len(d.Shares))
	}

	// alice: total 1.4, 2 standard contributions -> weighted 1.8
	// bob: 0.4, carol: 0.2; total weighted 2.4
	if d.Shares[0].UserID != "alice" {
		t.Errorf("Top share = %s, want alice", d.Shares[0].UserID)
	}
	alice := d.Shares[0]
	if alice.LogCount != 2 || alice.StandardContributions != 2 {
		t.Errorf("alice share = %+v", alice)
	}
	if math.Abs(alice.WeightedScore-1.8) > 1e-9 {
		t.Errorf("alice weighted = %v, want 1.8", alice.WeightedScore)
	}
	if math.Abs(d.TotalWeightedScore-2.4) > 1e-9 {
		t.Errorf("TotalWeightedScore = %v, want 2.4", d.TotalWeightedScore)
	}

	// floor(1.8/2.4*1000)=750, floor(0.4/2.4*1000)=166, floor(0.2/2.4*1000)=83
	wantRewards := map[string]int64{"alice": 750, "bob": 166, "carol": 83}
	var sum int64
	for _, sh := range d.Shares {
		if sh.Reward != wantRewards[sh.UserID] {
			t.Errorf("%s reward = %d, want %d", sh.UserID, sh.Reward, wantRewards[sh.UserID])
		}
		sum += sh.Reward
	}
	if sum > d.TotalRewardPool {
		t.Errorf("Σreward = %d exceeds pool %d", sum, d.TotalRewardPool)
	}
	if d.RoundingLoss != d.TotalRewardPool-sum {
		t.Errorf("RoundingLoss = %d, want %d", d.RoundingLoss, d.TotalRewardPool-sum)
	}

	var pct float64
	for _, sh := range d.Shares {
		pct += sh.ContributionPercent
	}
	if math.Abs(pct-100) > 1e-6 {
		t.Errorf("Σpercent = %v, want 100", pct)
	}
}

func TestCompute_ReplayDeterminism(t *testing.T) {
	svc, mem := newTestDistribution(t, 0.2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	req := &models.DistributeRequest{
		TotalRewardPool: 12345,
		WindowStart:     base,
		WindowEnd:       base.Add(24 * time.Hour),
	}

	first, err := svc.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := svc.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Replay differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCompute_WindowBoundsExcludeOutsideEvents(t *testing.T) {
	svc, mem := newTestDistribution(t, 0)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	// Window covers only the first two events
	d, err := svc.Compute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 100,
		WindowStart:     base,
		WindowEnd:       base.Add(90 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if d.EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", d.EventCount)
	}
	if len(d.Shares) != 1 || d.Shares[0].UserID != "alice" {
		t.Errorf("Shares = %+v, want alice only", d.Shares)
	}
}

func TestCompute_EmptyWindow(t *testing.T) {
	svc, mem := newTestDistribution(t, 0.2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	d, err := svc.Compute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 1000,
		WindowStart:     base.Add(-48 * time.Hour),
		WindowEnd:       base.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if d.EventCount != 0 || len(d.Shares) != 0 {
		t.Errorf("Empty window produced %d events, %d shares", d.EventCount, len(d.Shares))
	}
	if d.RoundingLoss != 0 {
		t.Errorf("RoundingLoss = %d on empty window, want 0", d.RoundingLoss)
	}
}

func TestCompute_ZeroWeightedTotal(t *testing.T) {
	svc, mem := newTestDistribution(t, 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mem.Append(ctx, &models.UsageEvent{ID: "ev-1", TaskID: "t1", SolutionID: "sol-a", UserID: "alice", EffectivenessScore: 0, Timestamp: base})

	d, err := svc.Compute(ctx, &models.DistributeRequest{
		TotalRewardPool: 1000,
		WindowStart:     base,
		WindowEnd:       base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(d.Shares) != 1 {
		t.Fatalf("Got %d shares, want 1", len(d.Shares))
	}
	if d.Shares[0].Reward != 0 || d.Shares[0].ContributionPercent != 0 {
		t.Errorf("Zero-score share = %+v, want zero reward", d.Shares[0])
	}
	if d.RoundingLoss != 0 {
		t.Errorf("RoundingLoss = %d with zero denominator, want 0", d.RoundingLoss)
	}
}

func TestCompute_RejectsInvalidRequest(t *testing.T) {
	svc, _ := newTestDistribution(t, 0.2)
	base := time.Now().UTC()

	_, err := svc.Compute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: -1,
		WindowStart:     base,
		WindowEnd:       base,
	})
	if _, ok := err.(*models.ValidationError); !ok {
		t.Fatalf("Expected *ValidationError for negative pool, got %T", err)
	}

	_, err = svc.Compute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 100,
		WindowStart:     base,
		WindowEnd:       base.Add(-time.Hour),
	})
	if _, ok := err.(*models.ValidationError); !ok {
		t.Fatalf("Expected *ValidationError for inverted window, got %T", err)
	}
}

func TestDistribute_PersistsRun(t *testing.T) {
	svc, mem := newTestDistribution(t, 0.2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	d, err := svc.Distribute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 1000,
		WindowStart:     base,
		WindowEnd:       base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if d.ID == "" || d.RanAt.IsZero() {
		t.Errorf("Distribution missing ID or RanAt: %+v", d)
	}

	stored, err := svc.Get(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored == nil || len(stored.Shares) != len(d.Shares) {
		t.Fatalf("Stored distribution = %+v", stored)
	}
}

func TestReport(t *testing.T) {
	svc, mem := newTestDistribution(t, 0.2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, mem, base)

	d, err := svc.Distribute(context.Background(), &models.DistributeRequest{
		TotalRewardPool: 1000,
		WindowStart:     base,
		WindowEnd:       base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}

	report, err := svc.Report(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected report for stored distribution")
	}

	cell, err := report.GetCellValue("Payouts", "A2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if cell != "alice" {
		t.Errorf("Top payout row = %s, want alice", cell)
	}

	missing, err := svc.Report(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil report for unknown distribution")
	}
}
