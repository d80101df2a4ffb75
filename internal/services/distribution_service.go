package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"praxis/internal/database"
	"praxis/internal/models"
	"praxis/internal/store"
)

// DistributionService implements the RetroPGF payout: a pure, replayable
// computation over a time-bounded slice of the ledger. It reads the ledger
// and the current standards; it never mutates stats or standard records.
type DistributionService struct {
	ledger        store.LedgerStore
	standards     store.StandardStore
	distributions store.DistributionStore
	mongoDB       *database.MongoDB
	metrics       *Metrics

	mu            sync.RWMutex
	standardBonus float64
}

// NewDistributionService creates the distribution service.
// mongoDB is optional; when present every run is archived there as well.
func NewDistributionService(
	ledger store.LedgerStore,
	standards store.StandardStore,
	distributions store.DistributionStore,
	mongoDB *database.MongoDB,
	standardBonus float64,
	metrics *Metrics,
) *DistributionService {
	return &DistributionService{
		ledger:        ledger,
		standards:     standards,
		distributions: distributions,
		mongoDB:       mongoDB,
		standardBonus: standardBonus,
		metrics:       metrics,
	}
}

// StandardBonus returns the current per-event standard bonus
func (s *DistributionService) StandardBonus() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.standardBonus
}

// SetStandardBonus swaps the bonus (config hot-reload)
func (s *DistributionService) SetStandardBonus(b float64) error {
	if b < 0 {
		return models.NewConfigError("rewards.standardBonus", "must be non-negative")
	}
	s.mu.Lock()
	s.standardBonus = b
	s.mu.Unlock()
	return nil
}

// Compute runs the distribution algorithm without persisting anything.
// Identical inputs against an unchanged ledger yield identical shares.
func (s *DistributionService) Compute(ctx context.Context, req *models.DistributeRequest) (*models.Distribution, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	events, err := s.ledger.Window(ctx, req.WindowStart, req.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger window: %w", err)
	}

	standards, err := s.standards.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load standard records: %w", err)
	}
	standardByTask := make(map[string]string, len(standards))
	for _, rec := range standards {
		standardByTask[rec.TaskID] = rec.SolutionID
	}

	bonus := s.StandardBonus()

	// Fold per contributor, preserving first-seen order for determinism
	// ahead of the final sort.
	type accum struct {
		share models.ContributorShare
		order int
	}
	byUser := make(map[string]*accum)
	var userOrder []string
	for _, ev := range events {
		a, ok := byUser[ev.UserID]
		if !ok {
			a = &accum{share: models.ContributorShare{UserID: ev.UserID, UserRole: ev.UserRole}, order: len(userOrder)}
			byUser[ev.UserID] = a
			userOrder = append(userOrder, ev.UserID)
		}
		a.share.LogCount++
		a.share.TotalScore += ev.EffectivenessScore
		if standardByTask[ev.TaskID] == ev.SolutionID {
			a.share.StandardContributions++
		}
	}

	var totalWeighted float64
	for _, userID := range userOrder {
		a := byUser[userID]
		a.share.WeightedScore = a.share.TotalScore + bonus*float64(a.share.StandardContributions)
		totalWeighted += a.share.WeightedScore
	}

	shares := make([]models.ContributorShare, 0, len(userOrder))
	var rewarded int64
	for _, userID := range userOrder {
		a := byUser[userID]
		if totalWeighted > 0 {
			share := a.share.WeightedScore / totalWeighted
			a.share.ContributionPercent = share * 100
			a.share.Reward = int64(math.Floor(share * float64(req.TotalRewardPool)))
		}
		rewarded += a.share.Reward
		shares = append(shares, a.share)
	}

	// Reward descending; ties broken deterministically so replays are
	// byte-identical.
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Reward != shares[j].Reward {
			return shares[i].Reward > shares[j].Reward
		}
		if shares[i].WeightedScore != shares[j].WeightedScore {
			return shares[i].WeightedScore > shares[j].WeightedScore
		}
		return shares[i].UserID < shares[j].UserID
	})

	var roundingLoss int64
	if totalWeighted > 0 {
		// Flooring leaves a remainder; it is reported, not redistributed.
		roundingLoss = req.TotalRewardPool - rewarded
	}

	return &models.Distribution{
		TotalRewardPool:    req.TotalRewardPool,
		WindowStart:        req.WindowStart.UTC(),
		WindowEnd:          req.WindowEnd.UTC(),
		EventCount:         len(events),
		TotalWeightedScore: totalWeighted,
		RoundingLoss:       roundingLoss,
		Shares:             shares,
	}, nil
}

// Distribute computes and persists a distribution run
func (s *DistributionService) Distribute(ctx context.Context, req *models.DistributeRequest) (*models.Distribution, error) {
	d, err := s.Compute(ctx, req)
	if err != nil {
		return nil, err
	}

	d.ID = uuid.New().String()
	d.RanAt = time.Now().UTC()

	if err := s.distributions.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save distribution: %w", err)
	}

	if s.mongoDB != nil {
		if _, err := s.mongoDB.Database().Collection(database.CollectionDistributionArchive).InsertOne(ctx, d); err != nil {
			log.Printf("⚠️  Failed to archive distribution %s to MongoDB: %v", d.ID, err)
		}
	}

	if s.metrics != nil {
		s.metrics.DistributionRuns.Inc()
	}
	log.Printf("💰 Distribution %s: %d contributors, pool %d, rounding loss %d",
		d.ID, len(d.Shares), d.TotalRewardPool, d.RoundingLoss)
	return d, nil
}

// Get returns a stored distribution, or (nil, nil) if unknown
func (s *DistributionService) Get(ctx context.Context, id string) (*models.Distribution, error) {
	return s.distributions.Get(ctx, id)
}

// Report renders a stored distribution as an xlsx payout report
func (s *DistributionService) Report(ctx context.Context, id string) (*excelize.File, error) {
	d, err := s.distributions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, nil
	}

	f := excelize.NewFile()
	const sheet = "Payouts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"User", "Role", "Logs", "Total Score", "Standard Contributions", "Weighted Score", "Contribution %", "Reward"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, sh := range d.Shares {
		values := []interface{}{
			sh.UserID, sh.UserRole, sh.LogCount, sh.TotalScore,
			sh.StandardContributions, sh.WeightedScore, sh.ContributionPercent, sh.Reward,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	footer := len(d.Shares) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", footer), "Pool")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", footer), d.TotalRewardPool)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", footer+1), "Rounding loss")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", footer+1), d.RoundingLoss)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", footer+2), "Window")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", footer+2),
		fmt.Sprintf("%s to %s", d.WindowStart.Format(time.RFC3339), d.WindowEnd.Format(time.RFC3339)))

	return f, nil
}
