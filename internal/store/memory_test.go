package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"praxis/internal/models"
)

func TestMemory_AppendAndWindow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := &models.UsageEvent{
			ID:         fmt.Sprintf("ev-%d", i),
			TaskID:     "weekly_report",
			SolutionID: "sol-a",
			UserID:     "alice",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := m.Append(ctx, ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	count, err := m.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}

	// Window is inclusive on both ends
	events, err := m.Window(ctx, base.Add(1*time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Window returned %d events, want 3", len(events))
	}
	if events[0].ID != "ev-1" || events[2].ID != "ev-3" {
		t.Errorf("Window ordering wrong: got %s..%s", events[0].ID, events[2].ID)
	}
}

func TestMemory_WindowOrderingIsDeterministic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same timestamp, appended out of ID order; ties break on ID
	for _, id := range []string{"ev-c", "ev-a", "ev-b"} {
		if err := m.Append(ctx, &models.UsageEvent{ID: id, UserID: "alice", Timestamp: ts}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := m.Window(ctx, ts.Add(-time.Minute), ts.Add(time.Minute))
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	want := []string{"ev-a", "ev-b", "ev-c"}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, id)
		}
	}
}

func TestMemory_ByUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ts := time.Now().UTC()
	m.Append(ctx, &models.UsageEvent{ID: "ev-1", UserID: "alice", Timestamp: ts})
	m.Append(ctx, &models.UsageEvent{ID: "ev-2", UserID: "bob", Timestamp: ts})
	m.Append(ctx, &models.UsageEvent{ID: "ev-3", UserID: "alice", Timestamp: ts})

	events, err := m.ByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ByUser failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("ByUser returned %d events, want 2", len(events))
	}
}

func TestMemory_StatsRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	missing, err := m.Get(ctx, "unknown")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown solution")
	}

	st := models.NewSolutionStats("weekly_report", "sol-a")
	st.Apply(&models.UsageEvent{ID: "ev-1", UserID: "alice", EffectivenessScore: 0.8, ValueGrowth: 0.2, Timestamp: time.Now()})
	if err := m.Put(ctx, st); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := m.Get(ctx, "sol-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UsageCount != 1 || got.AverageScore != 0.8 {
		t.Errorf("Got usageCount=%d avgScore=%v, want 1 and 0.8", got.UsageCount, got.AverageScore)
	}

	// Stored copy is isolated from caller mutation
	got.Contributors["mallory"] = true
	again, _ := m.Get(ctx, "sol-a")
	if again.DistinctContributors() != 1 {
		t.Errorf("Stored stats mutated through returned copy: %d contributors", again.DistinctContributors())
	}
}

func TestMemory_MaxUsageCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	max, err := m.MaxUsageCount(ctx)
	if err != nil {
		t.Fatalf("MaxUsageCount failed: %v", err)
	}
	if max != 0 {
		t.Errorf("MaxUsageCount = %d on empty store, want 0", max)
	}

	m.Put(ctx, &models.SolutionStats{SolutionID: "sol-a", TaskID: "t1", UsageCount: 7})
	m.Put(ctx, &models.SolutionStats{SolutionID: "sol-b", TaskID: "t1", UsageCount: 42})
	m.Put(ctx, &models.SolutionStats{SolutionID: "sol-c", TaskID: "t2", UsageCount: 3})

	max, err = m.MaxUsageCount(ctx)
	if err != nil {
		t.Fatalf("MaxUsageCount failed: %v", err)
	}
	if max != 42 {
		t.Errorf("MaxUsageCount = %d, want 42", max)
	}
}

func TestMemory_StandardStore(t *testing.T) {
	m := NewMemory()
	standards := m.Standards()
	ctx := context.Background()

	rec, err := standards.Get(ctx, "weekly_report")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Error("Expected nil for task with no standard")
	}

	now := time.Now().UTC()
	if err := standards.Put(ctx, &models.StandardRecord{
		TaskID:         "weekly_report",
		SolutionID:     "sol-a",
		StandardizedAt: now,
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Overwrite replaces, never duplicates
	if err := standards.Put(ctx, &models.StandardRecord{
		TaskID:         "weekly_report",
		SolutionID:     "sol-b",
		StandardizedAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	all, err := standards.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All returned %d records, want 1", len(all))
	}
	if all[0].SolutionID != "sol-b" {
		t.Errorf("Standard = %s, want sol-b", all[0].SolutionID)
	}

	standards.AppendTransition(ctx, &models.StandardTransition{ID: "tr-1", TaskID: "weekly_report", ToSolutionID: "sol-a"})
	standards.AppendTransition(ctx, &models.StandardTransition{ID: "tr-2", TaskID: "weekly_report", FromSolutionID: "sol-a", ToSolutionID: "sol-b"})
	standards.AppendTransition(ctx, &models.StandardTransition{ID: "tr-3", TaskID: "other_task", ToSolutionID: "sol-x"})

	history, err := standards.History(ctx, "weekly_report")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History returned %d transitions, want 2", len(history))
	}
	if history[0].ID != "tr-1" || history[1].ID != "tr-2" {
		t.Errorf("History order wrong: %s, %s", history[0].ID, history[1].ID)
	}
}

func TestMemory_DistributionStore(t *testing.T) {
	m := NewMemory()
	distributions := m.Distributions()
	ctx := context.Background()

	missing, err := distributions.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown distribution")
	}

	d := &models.Distribution{
		ID:              "dist-1",
		TotalRewardPool: 1000,
		Shares: []models.ContributorShare{
			{UserID: "alice", Reward: 600},
			{UserID: "bob", Reward: 400},
		},
	}
	if err := distributions.Save(ctx, d); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := distributions.Get(ctx, "dist-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || len(got.Shares) != 2 {
		t.Fatalf("Got %+v, want 2 shares", got)
	}

	// Saved copy is isolated from later caller mutation
	d.Shares[0].Reward = 0
	again, _ := distributions.Get(ctx, "dist-1")
	if again.Shares[0].Reward != 600 {
		t.Errorf("Stored distribution mutated through caller slice: %d", again.Shares[0].Reward)
	}
}
