package preflight

import (
	"fmt"
	"log"
	"os"

	"praxis/internal/config"
	"praxis/internal/database"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	db         *database.DB
	paramsFile string
}

// NewChecker creates a new preflight checker
func NewChecker(db *database.DB, paramsFile string) *Checker {
	return &Checker{
		db:         db,
		paramsFile: paramsFile,
	}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
		c.checkDatabaseSchema(),
		c.checkEngineParams(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("\n📊 Pre-flight summary: %d passed, %d failed, %d warnings\n", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkDatabaseConnection verifies database connectivity
func (c *Checker) checkDatabaseConnection() CheckResult {
	if err := c.db.Ping(); err != nil {
		return CheckResult{
			Name:    "Database Connection",
			Status:  "fail",
			Message: "Cannot connect to database",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Database Connection",
		Status:  "pass",
		Message: "Database connection successful",
	}
}

// checkDatabaseSchema verifies all required tables exist
func (c *Checker) checkDatabaseSchema() CheckResult {
	requiredTables := []string{
		"usage_events",
		"solution_stats",
		"solution_contributors",
		"standard_records",
		"standard_history",
		"distributions",
		"distribution_shares",
	}

	for _, table := range requiredTables {
		var count int
		var query string
		if c.db.Dialect == database.DialectSQLite {
			query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
		} else {
			query = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
		}
		err := c.db.QueryRow(query, table).Scan(&count)
		if err != nil || count == 0 {
			return CheckResult{
				Name:    "Database Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(requiredTables)),
	}
}

// checkEngineParams validates the scoring parameter file
func (c *Checker) checkEngineParams() CheckResult {
	if _, err := os.Stat(c.paramsFile); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Engine Parameters",
			Status:  "warning",
			Message: fmt.Sprintf("Params file %s not found, using defaults", c.paramsFile),
		}
	}

	if _, err := config.LoadEngineConfig(c.paramsFile); err != nil {
		return CheckResult{
			Name:    "Engine Parameters",
			Status:  "fail",
			Message: fmt.Sprintf("Invalid parameters in %s", c.paramsFile),
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Engine Parameters",
		Status:  "pass",
		Message: "Scoring parameters valid",
	}
}

// QuickCheck runs minimal checks for fast startup
func (c *Checker) QuickCheck() []CheckResult {
	log.Println("⚡ Running quick pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
	}

	for _, result := range results {
		if result.Status == "pass" {
			log.Printf("   ✅ %s", result.Name)
		} else if result.Status == "fail" {
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
		}
	}

	return results
}
