package config

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"praxis/internal/models"
	"praxis/internal/scoring"
)

// RewardConfig configures the RetroPGF distributor
type RewardConfig struct {
	// StandardBonus is the flat per-event bonus for contributions that used
	// the now-standard solution (weightedScore = totalScore + bonus * count)
	StandardBonus float64 `yaml:"standardBonus"`

	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig optionally runs distributions on a cron schedule
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Pool    int64  `yaml:"pool"`
}

// EngineConfig is the engine.yaml file: every tunable of the scoring,
// standardization and reward machinery. All values are overridable without
// code changes; invalid values are rejected at load time.
type EngineConfig struct {
	Scoring         scoring.Params     `yaml:"scoring"`
	Standardization scoring.Thresholds `yaml:"standardization"`
	Rewards         RewardConfig       `yaml:"rewards"`
}

// DefaultEngineConfig returns the stock engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Scoring:         scoring.DefaultParams(),
		Standardization: scoring.DefaultThresholds(),
		Rewards: RewardConfig{
			StandardBonus: 0.2,
			Schedule: ScheduleConfig{
				Enabled: false,
				Cron:    "0 0 1 1,4,7,10 *", // quarterly
				Pool:    0,
			},
		},
	}
}

// LoadEngineConfig reads and validates the engine parameters file.
// A missing file yields the defaults; a malformed or out-of-range file is a
// startup error, never discovered mid-computation.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read engine params file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse engine params YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every engine parameter
func (c EngineConfig) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Standardization.Validate(); err != nil {
		return err
	}
	if c.Rewards.StandardBonus < 0 {
		return models.NewConfigError("rewards.standardBonus", "must be non-negative")
	}
	if c.Rewards.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Rewards.Schedule.Cron); err != nil {
			return models.NewConfigError("rewards.schedule.cron", err.Error())
		}
		if c.Rewards.Schedule.Pool <= 0 {
			return models.NewConfigError("rewards.schedule.pool", "must be positive when the schedule is enabled")
		}
	}
	return nil
}
