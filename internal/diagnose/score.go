package diagnose

import "github.com/clusterguard/clusterguard/internal/models"

// severity penalties subtracted from the starting score of 100
const (
	penaltyCritical = 25
	penaltyHigh     = 15
	penaltyMedium   = 8
	penaltyLow      = 3
)

// Score reduces a finding multiset to a 0-100 health score. Pure and
// deterministic: the same findings always produce the same score, and
// adding a finding can only lower it.
func Score(findings []models.Finding) int {
	score := 100
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			score -= penaltyCritical
		case models.SeverityHigh:
			score -= penaltyHigh
		case models.SeverityMedium:
			score -= penaltyMedium
		case models.SeverityLow:
			score -= penaltyLow
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Operator-facing health labels
const (
	StatusHealthy  = "Healthy"
	StatusDegraded = "Degraded"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

// Status classifies a score into the operator-facing health label
func Status(score int) string {
	switch {
	case score >= 90:
		return StatusHealthy
	case score >= 70:
		return StatusDegraded
	case score >= 50:
		return StatusWarning
	default:
		return StatusCritical
	}
}
