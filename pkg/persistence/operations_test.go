package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper function to create a new database for each test.
func createTestDB(t *testing.T) (*Operations, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "persistence_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")

	db, err := openDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}

	return NewOperations(db), cleanup
}

func TestLogOperations(t *testing.T) {
	t.Run("InsertAndQuery", func(t *testing.T) {
		ops, cleanup := createTestDB(t)
		defer cleanup()

		rec := &LogRecord{
			Level:       "info",
			Message:     "Archy started working on: Fix login bug",
			PersonaName: "Archy Bot",
			WorkItemID:  "WI-42",
			Project:     "Phoenix",
		}
		if err := ops.InsertLog(rec); err != nil {
			t.Fatalf("Failed to insert log: %v", err)
		}
		if rec.ID == "" {
			t.Error("Expected generated log id")
		}

		logs, err := ops.GetLogs(&LogFilter{PersonaName: "Archy Bot"})
		if err != nil {
			t.Fatalf("Failed to get logs: %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("Expected 1 log, got %d", len(logs))
		}
		if logs[0].WorkItemID != "WI-42" || logs[0].Project != "Phoenix" {
			t.Errorf("Unexpected log contents: %+v", logs[0])
		}
	})

	t.Run("FilterByLevel", func(t *testing.T) {
		ops, cleanup := createTestDB(t)
		defer cleanup()

		for _, level := range []string{"info", "error", "info"} {
			if err := ops.InsertLog(&LogRecord{Level: level, Message: "m"}); err != nil {
				t.Fatal(err)
			}
		}

		errorLogs, err := ops.GetLogs(&LogFilter{Level: "error"})
		if err != nil {
			t.Fatal(err)
		}
		if len(errorLogs) != 1 {
			t.Errorf("Expected 1 error log, got %d", len(errorLogs))
		}
	})

	t.Run("DeleteOldLogsSeparateRetention", func(t *testing.T) {
		ops, cleanup := createTestDB(t)
		defer cleanup()

		old := time.Now().UTC().AddDate(0, 0, -30)
		recent := time.Now().UTC()

		logs := []*LogRecord{
			{CreatedAt: old, Level: "info", Message: "old system"},
			{CreatedAt: recent, Level: "info", Message: "new system"},
			{CreatedAt: old, Level: "info", Message: "old persona", PersonaName: "Kav Bot"},
			{CreatedAt: recent, Level: "info", Message: "new persona", PersonaName: "Kav Bot"},
		}
		for _, rec := range logs {
			if err := ops.InsertLog(rec); err != nil {
				t.Fatal(err)
			}
		}

		systemDeleted, personaDeleted, err := ops.DeleteOldLogs(14, 7)
		if err != nil {
			t.Fatalf("Failed to delete old logs: %v", err)
		}
		if systemDeleted != 1 {
			t.Errorf("Expected 1 system log deleted, got %d", systemDeleted)
		}
		if personaDeleted != 1 {
			t.Errorf("Expected 1 persona log deleted, got %d", personaDeleted)
		}

		remaining, err := ops.GetLogs(&LogFilter{Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if len(remaining) != 2 {
			t.Errorf("Expected 2 remaining logs, got %d", len(remaining))
		}
	})
}

func TestSettingsOperations(t *testing.T) {
	ops, cleanup := createTestDB(t)
	defer cleanup()

	value, err := ops.GetSetting(SettingLogRetentionDays, "14")
	if err != nil {
		t.Fatal(err)
	}
	if value != "14" {
		t.Errorf("Expected fallback 14, got %q", value)
	}

	if err := ops.SetSetting(SettingLogRetentionDays, "30"); err != nil {
		t.Fatal(err)
	}
	if err := ops.SetSetting(SettingLogRetentionDays, "60"); err != nil {
		t.Fatal(err)
	}

	value, err = ops.GetSetting(SettingLogRetentionDays, "14")
	if err != nil {
		t.Fatal(err)
	}
	if value != "60" {
		t.Errorf("Expected upserted value 60, got %q", value)
	}

	all, err := ops.AllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 setting row, got %d", len(all))
	}
}

func TestCompletedItemOperations(t *testing.T) {
	ops, cleanup := createTestDB(t)
	defer cleanup()

	rec := &CompletedItem{
		ID:          "item-1",
		ExternalRef: "WI-42",
		Title:       "Fix login bug",
		Project:     "Phoenix",
		CompletedBy: "Archy Bot",
		Status:      "completed",
		Detail:      "done",
	}
	if err := ops.RecordCompletedItem(rec); err != nil {
		t.Fatalf("Failed to record completed item: %v", err)
	}

	failed := &CompletedItem{
		ID:     "item-2",
		Title:  "Flaky migration",
		Status: "failed",
		Detail: "timeout",
	}
	if err := ops.RecordCompletedItem(failed); err != nil {
		t.Fatal(err)
	}

	refs, err := ops.CompletedRefs()
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != "WI-42" {
		t.Errorf("Expected completed refs [WI-42], got %v", refs)
	}

	items, err := ops.CompletedItems(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 completed items, got %d", len(items))
	}
}

func TestSchemaIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "persistence_schema_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")

	db, err := openDatabase(dbPath)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	db.Close()

	// Re-opening an existing database must not fail or re-run DDL
	db, err = openDatabase(dbPath)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer db.Close()

	version, err := getSchemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", CurrentSchemaVersion, version)
	}
}
