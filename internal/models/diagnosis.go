package models

import (
	"sort"
	"time"
)

// Finding is one issue discovered by one diagnostic analyzer
type Finding struct {
	Analyzer    string   `json:"analyzer"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Resource    string   `json:"resource"`
	Detail      string   `json:"detail,omitempty"`
}

// DiagnosisSummary counts findings per severity
type DiagnosisSummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Diagnosis is the aggregated result of one diagnostic invocation.
// Findings are sorted critical-first, stable within a severity.
type Diagnosis struct {
	ClusterID       string           `json:"cluster_id"`
	ClusterName     string           `json:"cluster_name,omitempty"`
	Score           int              `json:"score"`
	Status          string           `json:"status"`
	Summary         DiagnosisSummary `json:"summary"`
	Findings        []Finding        `json:"findings"`
	Recommendations []string         `json:"recommendations,omitempty"`
	Narrative       string           `json:"narrative,omitempty"`
	CheckedAt       time.Time        `json:"checked_at"`
}

// SortFindings orders by severity rank, keeping discovery order within
// each severity (stable sort).
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})
}

// Summarize counts findings by severity
func Summarize(findings []Finding) DiagnosisSummary {
	s := DiagnosisSummary{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}
