package failures

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func initTemp(t *testing.T) {
	t.Helper()
	if err := Init(filepath.Join(t.TempDir(), "failures.db")); err != nil {
		t.Fatalf("Failed to initialize failure store: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestFailureStore(t *testing.T) {
	initTemp(t)

	testErr := errors.New("encode 720p: exit status 1: Conversion failed!")
	jobData := map[string]interface{}{"mode": "package"}

	if err := StoreFailure("fail-hash", "package", "encode", testErr, jobData); err != nil {
		t.Fatalf("Failed to store failure: %v", err)
	}

	record, err := GetFailure("fail-hash")
	if err != nil {
		t.Fatalf("Failed to get failure: %v", err)
	}
	if record == nil {
		t.Fatal("Expected failure record, got nil")
	}
	if record.Error != testErr.Error() {
		t.Errorf("Expected error %q, got %q", testErr.Error(), record.Error)
	}
	if record.Kind != "encode" || record.Mode != "package" {
		t.Errorf("Unexpected kind/mode: %q %q", record.Kind, record.Mode)
	}
	if !strings.Contains(record.JobData, `"package"`) {
		t.Errorf("Expected job data to be stored, got %q", record.JobData)
	}

	missing, err := GetFailure("non-existent")
	if err != nil || missing != nil {
		t.Errorf("Expected nil record for missing hash, got %v, %v", missing, err)
	}
}

func TestFailureStoreNilError(t *testing.T) {
	initTemp(t)

	if err := StoreFailure("nil-err", "resize", "unknown", nil, nil); err != nil {
		t.Fatal(err)
	}
	record, _ := GetFailure("nil-err")
	if record == nil || record.Error != "unknown error" {
		t.Errorf("Expected placeholder error message, got %+v", record)
	}
}

func TestFailureStoreListDeleteCleanup(t *testing.T) {
	initTemp(t)

	for _, h := range []string{"f1", "f2"} {
		if err := StoreFailure(h, "capture", "stalled", errors.New("stalled"), nil); err != nil {
			t.Fatal(err)
		}
	}
	records, err := ListFailures()
	if err != nil || len(records) != 2 {
		t.Fatalf("Expected 2 failures, got %d (%v)", len(records), err)
	}

	if err := DeleteFailure("f1"); err != nil {
		t.Fatal(err)
	}
	if r, _ := GetFailure("f1"); r != nil {
		t.Error("Expected f1 to be deleted")
	}

	if n, _ := CleanupOldRecords(24 * time.Hour); n != 0 {
		t.Errorf("Expected no records older than a day, removed %d", n)
	}
	time.Sleep(2 * time.Millisecond)
	if n, _ := CleanupOldRecords(time.Nanosecond); n != 1 {
		t.Errorf("Expected 1 record removed, got %d", n)
	}
	if err := CheckHealth(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
