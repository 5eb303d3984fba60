// Package diagnose reduces raw cluster state to a scored, structured
// health judgment.
package diagnose

import (
	"context"
	"fmt"
	"time"

	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
)

// Phase labels the diagnostic state machine. Phases are call-local;
// the pipeline carries no state between invocations.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseGathering Phase = "gathering"
	PhaseAnalyzing Phase = "analyzing"
	PhaseScoring   Phase = "scoring"
	PhaseEnriching Phase = "enriching"
	PhaseDone      Phase = "done"
)

// SnapshotProvider is the external data collaborator. A provider may
// return a partial snapshot (with Missing populated) alongside a nil
// error; the pipeline degrades instead of failing.
type SnapshotProvider interface {
	ClusterSnapshot(ctx context.Context, clusterID string) (*models.ClusterSnapshot, error)
}

// Enricher is the optional narrative collaborator (a language model).
// Called under a bounded timeout; any failure falls back to the
// non-enriched diagnosis.
type Enricher interface {
	Enrich(ctx context.Context, findings []models.Finding, score int) (string, error)
}

// DefaultEnrichTimeout bounds the enrichment call
const DefaultEnrichTimeout = 15 * time.Second

// Pipeline runs the full diagnosis flow. Stateless across invocations
// and safe for concurrent Diagnose calls.
type Pipeline struct {
	provider      SnapshotProvider
	enricher      Enricher
	enrichTimeout time.Duration
	analyzers     []Analyzer
	log           logging.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithEnricher enables narrative enrichment
func WithEnricher(e Enricher) PipelineOption {
	return func(p *Pipeline) { p.enricher = e }
}

// WithEnrichTimeout overrides the enrichment deadline
func WithEnrichTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.enrichTimeout = d }
}

// WithAnalyzers replaces the analyzer set, for tests
func WithAnalyzers(analyzers ...Analyzer) PipelineOption {
	return func(p *Pipeline) { p.analyzers = analyzers }
}

// WithLogger sets the pipeline logger
func WithLogger(l logging.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates a pipeline over a snapshot provider
func NewPipeline(provider SnapshotProvider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider:      provider,
		enrichTimeout: DefaultEnrichTimeout,
		analyzers:     defaultAnalyzers(),
		log:           logging.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Diagnose runs gather -> analyze -> score -> (optional) enrich for
// one cluster and returns the structured diagnosis.
func (p *Pipeline) Diagnose(ctx context.Context, clusterID string) (*models.Diagnosis, error) {
	phase := PhaseIdle
	advance := func(next Phase) {
		phase = next
		p.log.Debug("diagnose", "phase transition", "phase", string(phase), "cluster", clusterID)
	}

	advance(PhaseGathering)
	snap, err := p.provider.ClusterSnapshot(ctx, clusterID)
	if snap == nil {
		if err == nil {
			err = models.ErrSnapshotUnavailable
		}
		return nil, fmt.Errorf("gathering cluster state: %w", err)
	}
	if err != nil {
		// Partial snapshot: analyze what is present, note the rest.
		p.log.Warn("diagnose", "partial snapshot", "cluster", clusterID,
			"missing", fmt.Sprintf("%v", snap.Missing), "error", err.Error())
	}

	advance(PhaseAnalyzing)
	var findings []models.Finding
	for _, a := range p.analyzers {
		findings = append(findings, a.Analyze(snap)...)
	}
	findings = append(findings, coverageFindings(snap)...)

	advance(PhaseScoring)
	score := Score(findings)
	models.SortFindings(findings)

	diagnosis := &models.Diagnosis{
		ClusterID:       clusterID,
		ClusterName:     snap.ClusterName,
		Score:           score,
		Status:          Status(score),
		Summary:         models.Summarize(findings),
		Findings:        findings,
		Recommendations: recommendations(findings),
		CheckedAt:       time.Now().UTC(),
	}

	if p.enricher != nil {
		advance(PhaseEnriching)
		diagnosis.Narrative = p.enrich(ctx, findings, score)
	}

	advance(PhaseDone)
	return diagnosis, nil
}

// enrich is best-effort: timeout or error returns an empty narrative
func (p *Pipeline) enrich(ctx context.Context, findings []models.Finding, score int) string {
	enrichCtx, cancel := context.WithTimeout(ctx, p.enrichTimeout)
	defer cancel()

	narrative, err := p.enricher.Enrich(enrichCtx, findings, score)
	if err != nil {
		p.log.Warn("diagnose", "enrichment skipped", "error", err.Error())
		return ""
	}
	return narrative
}

// coverageFindings notes sections the provider could not gather, so a
// degraded diagnosis declares its reduced confidence.
func coverageFindings(snap *models.ClusterSnapshot) []models.Finding {
	var findings []models.Finding
	for _, section := range snap.Missing {
		findings = append(findings, models.Finding{
			Analyzer:    "snapshot-coverage",
			Severity:    models.SeverityLow,
			Description: fmt.Sprintf("%s data unavailable; related checks skipped, confidence reduced", section),
			Resource:    "snapshot",
		})
	}
	return findings
}

// recommendations are the rule-based next steps attached when no
// narrative enrichment is available.
func recommendations(findings []models.Finding) []string {
	var recs []string
	seen := map[string]bool{}
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			recs = append(recs, r)
		}
	}

	for _, f := range findings {
		switch {
		case f.Analyzer == "node-health" && f.Severity == models.SeverityCritical:
			add("Check node status with 'kubectl describe node <name>'")
		case f.Analyzer == "workload-health" && f.Severity == models.SeverityHigh:
			add("Check pod logs for containers with crash loops or high restart counts")
		case f.Analyzer == "resource-utilization":
			add("Review workload resource requests and consider scaling the cluster")
		}
	}
	if len(recs) == 0 && len(findings) == 0 {
		add("Cluster appears healthy. Continue monitoring.")
	}
	return recs
}
