package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter narrows a log read; zero values match everything
type Filter struct {
	ActionType string
	Since      time.Time
	Until      time.Time
}

func (f Filter) matches(r Record) bool {
	if f.ActionType != "" && r.ActionType != f.ActionType {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Read scans a JSONL audit log and returns matching records in file
// order. Reads need not be consistent with in-flight appends; a
// truncated trailing line (an append racing the read) is skipped.
func Read(path string, filter Filter) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if filter.matches(rec) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to scan audit log: %w", err)
	}
	return records, nil
}
