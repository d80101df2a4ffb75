package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"praxis/internal/config"
	"praxis/internal/models"
)

// SchedulerService runs recurring reward distributions on a cron schedule.
// When Redis is available a distributed lock keeps multiple instances from
// paying out the same window twice.
type SchedulerService struct {
	scheduler    gocron.Scheduler
	distribution *DistributionService
	redisService *RedisService
	instanceID   string

	mu        sync.Mutex
	schedule  config.ScheduleConfig
	job       gocron.Job
	lastRunAt time.Time
}

// NewSchedulerService creates the scheduler. redisService may be nil.
func NewSchedulerService(distribution *DistributionService, redisService *RedisService) (*SchedulerService, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &SchedulerService{
		scheduler:    scheduler,
		distribution: distribution,
		redisService: redisService,
		instanceID:   uuid.New().String(),
	}, nil
}

// Start registers the configured distribution job and starts the scheduler
func (s *SchedulerService) Start(schedule config.ScheduleConfig) error {
	log.Println("⏰ Starting scheduler service...")

	if err := s.Reconfigure(schedule); err != nil {
		return err
	}

	s.scheduler.Start()
	log.Println("✅ Scheduler service started")
	return nil
}

// Reconfigure swaps the distribution schedule (config hot-reload).
// A disabled schedule removes the job.
func (s *SchedulerService) Reconfigure(schedule config.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil {
		if err := s.scheduler.RemoveJob(s.job.ID()); err != nil {
			log.Printf("⚠️ Failed to remove distribution job: %v", err)
		}
		s.job = nil
	}

	s.schedule = schedule
	if !schedule.Enabled {
		log.Println("📅 Scheduled distributions disabled")
		return nil
	}

	if _, err := cron.ParseStandard(schedule.Cron); err != nil {
		return fmt.Errorf("invalid distribution cron expression: %w", err)
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(schedule.Cron, false),
		gocron.NewTask(s.runScheduledDistribution),
		gocron.WithName("reward-distribution"),
	)
	if err != nil {
		return fmt.Errorf("failed to create distribution job: %w", err)
	}

	s.job = job
	// Seed the window start only once; a reload that merely retunes scoring
	// weights must not swallow events recorded since the last scheduled run.
	if s.lastRunAt.IsZero() {
		s.lastRunAt = time.Now().UTC()
	}
	log.Printf("📅 Registered distribution job (cron: %s, pool: %d)", schedule.Cron, schedule.Pool)
	return nil
}

// Stop stops the scheduler
func (s *SchedulerService) Stop() error {
	log.Println("⏹️ Stopping scheduler service...")
	return s.scheduler.Shutdown()
}

// runScheduledDistribution pays out the window since the last scheduled run
func (s *SchedulerService) runScheduledDistribution() {
	ctx := context.Background()

	s.mu.Lock()
	schedule := s.schedule
	windowStart := s.lastRunAt
	s.mu.Unlock()

	windowEnd := time.Now().UTC()

	if s.redisService != nil {
		// Minute-level granularity prevents duplicate runs within the same tick
		lockKey := fmt.Sprintf("praxis:distribution-lock:%d", windowEnd.Unix()/60)

		acquired, err := s.redisService.AcquireLock(ctx, lockKey, s.instanceID, 5*time.Minute)
		if err != nil {
			log.Printf("❌ Failed to acquire distribution lock: %v", err)
			return
		}
		if !acquired {
			log.Println("⏭️ Scheduled distribution already running on another instance")
			return
		}
		defer func() {
			if _, err := s.redisService.ReleaseLock(ctx, lockKey, s.instanceID); err != nil {
				log.Printf("⚠️ Failed to release distribution lock: %v", err)
			}
		}()
	}

	log.Printf("▶️ Running scheduled distribution for window %s to %s",
		windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))

	d, err := s.distribution.Distribute(ctx, &models.DistributeRequest{
		TotalRewardPool: schedule.Pool,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
	})
	if err != nil {
		log.Printf("❌ Scheduled distribution failed: %v", err)
		return
	}

	s.mu.Lock()
	s.lastRunAt = windowEnd
	s.mu.Unlock()

	log.Printf("✅ Scheduled distribution %s completed (%d events, %d contributors)",
		d.ID, d.EventCount, len(d.Shares))
}
