package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"praxis/internal/database"
)

func setupPreflightTest(t *testing.T) (*database.DB, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "preflight.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	return db, filepath.Join(dir, "engine.yaml")
}

func TestNewChecker(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	checker := NewChecker(db, paramsFile)
	if checker == nil {
		t.Fatal("Expected non-nil checker")
	}

	if checker.db != db {
		t.Error("Checker database not set correctly")
	}

	if checker.paramsFile != paramsFile {
		t.Error("Checker params file not set correctly")
	}
}

func TestCheckDatabaseConnection_Success(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	checker := NewChecker(db, paramsFile)
	result := checker.checkDatabaseConnection()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s'", result.Status)
	}

	if result.Name != "Database Connection" {
		t.Errorf("Expected name 'Database Connection', got '%s'", result.Name)
	}
}

func TestCheckDatabaseConnection_Failure(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)
	db.Close() // Close database immediately to simulate failure

	checker := NewChecker(db, paramsFile)
	result := checker.checkDatabaseConnection()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}

	if result.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestCheckDatabaseSchema_Success(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	checker := NewChecker(db, paramsFile)
	result := checker.checkDatabaseSchema()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s': %s", result.Status, result.Message)
	}
}

func TestCheckDatabaseSchema_MissingTables(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "incomplete.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer db.Close()

	// Don't initialize - tables won't exist

	checker := NewChecker(db, filepath.Join(dir, "engine.yaml"))
	result := checker.checkDatabaseSchema()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
}

func TestCheckEngineParams_MissingIsWarning(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	// Don't create the file

	checker := NewChecker(db, paramsFile)
	result := checker.checkEngineParams()

	if result.Status != "warning" {
		t.Errorf("Expected status 'warning', got '%s'", result.Status)
	}
}

func TestCheckEngineParams_Valid(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	content := `scoring:
  weights:
    valueGain: 0.5
    costReduction: 0.3
    usage: 0.1
    synergy: 0.1
`
	if err := os.WriteFile(paramsFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write params file: %v", err)
	}

	checker := NewChecker(db, paramsFile)
	result := checker.checkEngineParams()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s': %s", result.Status, result.Message)
	}
}

func TestCheckEngineParams_Invalid(t *testing.T) {
	db, paramsFile := setupPreflightTest(t)

	// Weights don't sum to 1
	content := `scoring:
  weights:
    valueGain: 0.9
    costReduction: 0.9
    usage: 0.9
    synergy: 0.9
`
	if err := os.WriteFile(paramsFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write params file: %v", err)
	}

	checker := NewChecker(db, paramsFile)
	result := checker.checkEngineParams()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}

	if result.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestHasFailures(t *testing.T) {
	results := []CheckResult{
		{Name: "a", Status: "pass"},
		{Name: "b", Status: "warning"},
	}
	if HasFailures(results) {
		t.Error("Expected no failures")
	}

	results = append(results, CheckResult{Name: "c", Status: "fail"})
	if !HasFailures(results) {
		t.Error("Expected failures")
	}
}
