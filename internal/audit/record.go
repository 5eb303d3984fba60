// Package audit provides the append-only decision log. Every blocked
// or approval-required validation is recorded here; external reporting
// consumes the log, nothing in the core reads it back on the hot path.
package audit

import (
	"time"

	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/google/uuid"
)

// SchemaVersion of the record format
const SchemaVersion = "1.0"

// ViolationSummary is the per-violation slice of a record
type ViolationSummary struct {
	Policy   string `json:"policy"`
	Severity string `json:"severity"`
	Response string `json:"response"`
	Message  string `json:"message"`
}

// Record is one audit log entry. Never mutated or deleted after append.
type Record struct {
	SchemaVersion    string             `json:"schema_version"`
	ID               string             `json:"id"`
	Timestamp        time.Time          `json:"ts"`
	Actor            string             `json:"actor,omitempty"`
	SubjectKind      string             `json:"subject_kind"`
	ActionType       string             `json:"action_type,omitempty"`
	Summary          string             `json:"summary"`
	Decision         string             `json:"decision"`
	RequiresApproval bool               `json:"requires_approval"`
	Violations       []ViolationSummary `json:"violations,omitempty"`
}

// NewRecord builds a record from a validation outcome
func NewRecord(subject *models.Subject, result *models.ValidationResult) Record {
	rec := Record{
		SchemaVersion:    SchemaVersion,
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		Actor:            subject.Actor,
		SubjectKind:      string(subject.Kind),
		ActionType:       subject.Type,
		Summary:          subject.Summary(),
		Decision:         string(result.Decision),
		RequiresApproval: result.RequiresApproval,
	}
	for _, v := range result.Violations {
		rec.Violations = append(rec.Violations, ViolationSummary{
			Policy:   v.Policy,
			Severity: string(v.Severity),
			Response: string(v.Response),
			Message:  v.Message,
		})
	}
	return rec
}
