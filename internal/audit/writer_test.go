package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clusterguard/clusterguard/internal/models"
)

func blockedResult() *models.ValidationResult {
	return models.NewValidationResult([]models.Violation{{
		Policy:   "no_privileged_containers",
		Category: models.CategorySecurity,
		Severity: models.SeverityCritical,
		Response: models.ResponseBlock,
		Message:  "privileged containers are not allowed",
	}})
}

func TestNewRecord(t *testing.T) {
	subject := models.NewAction("create_cluster", map[string]any{"cloud": "aws"})
	subject.Actor = "agent-7"

	rec := NewRecord(subject, blockedResult())

	if rec.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %q, want %q", rec.SchemaVersion, SchemaVersion)
	}
	if rec.ID == "" {
		t.Error("record has no ID")
	}
	if rec.Timestamp.IsZero() || rec.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v, want non-zero UTC", rec.Timestamp)
	}
	if rec.Actor != "agent-7" {
		t.Errorf("actor = %q, want agent-7", rec.Actor)
	}
	if rec.ActionType != "create_cluster" {
		t.Errorf("action type = %q, want create_cluster", rec.ActionType)
	}
	if rec.Decision != string(models.DecisionBlocked) {
		t.Errorf("decision = %q, want blocked", rec.Decision)
	}
	if len(rec.Violations) != 1 || rec.Violations[0].Policy != "no_privileged_containers" {
		t.Errorf("violations = %+v", rec.Violations)
	}
}

func TestRecordIDsUnique(t *testing.T) {
	subject := models.NewAction("create_cluster", nil)
	result := blockedResult()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		rec := NewRecord(subject, result)
		if seen[rec.ID] {
			t.Fatalf("duplicate record ID %q", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestWriterAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()

	subject := models.NewAction("delete_cluster", nil)
	for i := 0; i < 3; i++ {
		if err := w.Append(NewRecord(subject, blockedResult())); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestWriterAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	w, err := NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	subject := models.NewAction("delete_cluster", nil)
	if err := w.Append(NewRecord(subject, blockedResult())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	w.Close()

	// reopening must keep existing records
	w, err = NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed on reopen: %v", err)
	}
	if err := w.Append(NewRecord(subject, blockedResult())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	w.Close()

	records, err := Read(path, Filter{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records after reopen, want 2", len(records))
	}
}

func TestWriterConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close()

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			subject := models.NewAction(fmt.Sprintf("action_%d", g), nil)
			for i := 0; i < perGoroutine; i++ {
				if err := w.Append(NewRecord(subject, blockedResult())); err != nil {
					t.Errorf("Append failed: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	// every line must be complete JSON: no interleaved writes
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("corrupt line %d: %v", count, err)
		}
		count++
	}
	if count != goroutines*perGoroutine {
		t.Errorf("got %d records, want %d", count, goroutines*perGoroutine)
	}
}

func TestReadFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, actionType := range []string{"delete_cluster", "create_cluster", "delete_cluster"} {
		if err := w.Append(NewRecord(models.NewAction(actionType, nil), blockedResult())); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	w.Close()

	records, err := Read(path, Filter{ActionType: "delete_cluster"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	records, err = Read(path, Filter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("future filter matched %d records", len(records))
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	w, err := NewWriter(path, Rotation{})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Append(NewRecord(models.NewAction("delete_cluster", nil), blockedResult())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	w.Close()

	// simulate a truncated trailing line from an interrupted append
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	if _, err := f.WriteString(`{"schema_version":"1.0","id":"trunc`); err != nil {
		t.Fatalf("failed to write truncated line: %v", err)
	}
	f.Close()

	records, err := Read(path, Filter{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 (truncated line skipped)", len(records))
	}
}
