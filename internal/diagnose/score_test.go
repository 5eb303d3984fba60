package diagnose

import (
	"testing"

	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/stretchr/testify/assert"
)

func findingsOf(severities ...models.Severity) []models.Finding {
	out := make([]models.Finding, len(severities))
	for i, s := range severities {
		out[i] = models.Finding{Analyzer: "test", Severity: s, Description: "x"}
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		severities []models.Severity
		want       int
	}{
		{"no findings", nil, 100},
		{"one low", []models.Severity{models.SeverityLow}, 97},
		{"one medium", []models.Severity{models.SeverityMedium}, 92},
		{"one high", []models.Severity{models.SeverityHigh}, 85},
		{"one critical", []models.Severity{models.SeverityCritical}, 75},
		{"mixed", []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityHigh}, 45},
		{"floor at zero", []models.Severity{
			models.SeverityCritical, models.SeverityCritical, models.SeverityCritical,
			models.SeverityCritical, models.SeverityCritical,
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(findingsOf(tt.severities...)))
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	base := findingsOf(models.SeverityMedium, models.SeverityLow)
	baseScore := Score(base)
	for _, s := range []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical} {
		assert.Less(t, Score(append(findingsOf(s), base...)), baseScore,
			"adding a %s finding must lower the score", s)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, StatusHealthy},
		{90, StatusHealthy},
		{89, StatusDegraded},
		{70, StatusDegraded},
		{69, StatusWarning},
		{50, StatusWarning},
		{49, StatusCritical},
		{0, StatusCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.score), "score %d", tt.score)
	}
}
