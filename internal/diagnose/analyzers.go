package diagnose

import (
	"fmt"
	"strings"

	"github.com/clusterguard/clusterguard/internal/models"
	corev1 "k8s.io/api/core/v1"
)

// Analyzer inspects one aspect of a snapshot and reports findings.
// Analyzers are independent and order-insensitive; the pipeline simply
// unions their output.
type Analyzer interface {
	Name() string
	Analyze(snap *models.ClusterSnapshot) []models.Finding
}

// defaultAnalyzers is the fixed, enumerated analyzer set. Explicit
// dispatch keeps the set auditable and the scoring reproducible.
func defaultAnalyzers() []Analyzer {
	return []Analyzer{
		nodeHealthAnalyzer{},
		workloadHealthAnalyzer{},
		resourceUtilizationAnalyzer{},
		eventPatternAnalyzer{},
	}
}

// nodeHealthAnalyzer flags NotReady nodes and pressure conditions
type nodeHealthAnalyzer struct{}

func (nodeHealthAnalyzer) Name() string { return "node-health" }

func (a nodeHealthAnalyzer) Analyze(snap *models.ClusterSnapshot) []models.Finding {
	var findings []models.Finding
	for _, node := range snap.Nodes {
		for _, cond := range node.Status.Conditions {
			switch {
			case cond.Type == corev1.NodeReady && cond.Status != corev1.ConditionTrue:
				findings = append(findings, models.Finding{
					Analyzer:    a.Name(),
					Severity:    models.SeverityCritical,
					Description: fmt.Sprintf("Node %s is not ready", node.Name),
					Resource:    "node/" + node.Name,
					Detail:      cond.Message,
				})
			case isPressure(cond.Type) && cond.Status == corev1.ConditionTrue:
				findings = append(findings, models.Finding{
					Analyzer:    a.Name(),
					Severity:    models.SeverityHigh,
					Description: fmt.Sprintf("Node %s has %s", node.Name, cond.Type),
					Resource:    "node/" + node.Name,
					Detail:      cond.Message,
				})
			}
		}
	}
	return findings
}

func isPressure(t corev1.NodeConditionType) bool {
	switch t {
	case corev1.NodeMemoryPressure, corev1.NodeDiskPressure, corev1.NodePIDPressure:
		return true
	}
	return false
}

// workloadHealthAnalyzer covers pods and deployments: failed and
// pending pods, crash loops, high restart counts, unavailable replicas.
type workloadHealthAnalyzer struct{}

func (workloadHealthAnalyzer) Name() string { return "workload-health" }

// restartThreshold above which a container is worth a finding on its own
const restartThreshold = 5

func (a workloadHealthAnalyzer) Analyze(snap *models.ClusterSnapshot) []models.Finding {
	var findings []models.Finding

	for _, pod := range snap.Pods {
		ref := fmt.Sprintf("pod/%s/%s", pod.Namespace, pod.Name)

		switch pod.Status.Phase {
		case corev1.PodFailed, corev1.PodUnknown:
			findings = append(findings, models.Finding{
				Analyzer:    a.Name(),
				Severity:    models.SeverityCritical,
				Description: fmt.Sprintf("Pod %s/%s is in %s state", pod.Namespace, pod.Name, pod.Status.Phase),
				Resource:    ref,
			})
		case corev1.PodPending:
			for _, cond := range pod.Status.Conditions {
				if cond.Status != corev1.ConditionTrue && cond.Message != "" {
					findings = append(findings, models.Finding{
						Analyzer:    a.Name(),
						Severity:    models.SeverityHigh,
						Description: fmt.Sprintf("Pod %s/%s is pending: %s", pod.Namespace, pod.Name, cond.Reason),
						Resource:    ref,
						Detail:      cond.Message,
					})
					break
				}
			}
		}

		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Waiting != nil && cs.State.Waiting.Reason == "CrashLoopBackOff" {
				findings = append(findings, models.Finding{
					Analyzer:    a.Name(),
					Severity:    models.SeverityHigh,
					Description: fmt.Sprintf("Container %s in pod %s/%s is in CrashLoopBackOff", cs.Name, pod.Namespace, pod.Name),
					Resource:    ref,
					Detail:      cs.State.Waiting.Message,
				})
			} else if cs.RestartCount > restartThreshold {
				findings = append(findings, models.Finding{
					Analyzer:    a.Name(),
					Severity:    models.SeverityHigh,
					Description: fmt.Sprintf("Container %s in pod %s/%s has restarted %d times", cs.Name, pod.Namespace, pod.Name, cs.RestartCount),
					Resource:    ref,
				})
			}
		}
	}

	for _, dep := range snap.Deployments {
		desired := int32(0)
		if dep.Spec.Replicas != nil {
			desired = *dep.Spec.Replicas
		}
		ready := dep.Status.ReadyReplicas
		if ready < desired {
			findings = append(findings, models.Finding{
				Analyzer:    a.Name(),
				Severity:    models.SeverityMedium,
				Description: fmt.Sprintf("Deployment %s/%s has %d/%d replicas ready", dep.Namespace, dep.Name, ready, desired),
				Resource:    fmt.Sprintf("deployment/%s/%s", dep.Namespace, dep.Name),
			})
		}
	}

	return findings
}

// resourceUtilizationAnalyzer flags sustained high usage
type resourceUtilizationAnalyzer struct{}

func (resourceUtilizationAnalyzer) Name() string { return "resource-utilization" }

// utilizationThreshold in percent
const utilizationThreshold = 80.0

func (a resourceUtilizationAnalyzer) Analyze(snap *models.ClusterSnapshot) []models.Finding {
	if snap.Utilization == nil {
		return nil
	}
	var findings []models.Finding
	checks := []struct {
		label string
		value float64
	}{
		{"CPU", snap.Utilization.CPUPercent},
		{"memory", snap.Utilization.MemoryPercent},
		{"storage", snap.Utilization.StoragePercent},
	}
	for _, c := range checks {
		if c.value > utilizationThreshold {
			findings = append(findings, models.Finding{
				Analyzer:    a.Name(),
				Severity:    models.SeverityMedium,
				Description: fmt.Sprintf("High %s utilization: %.0f%%", c.label, c.value),
				Resource:    "cluster",
				Detail:      fmt.Sprintf("threshold %.0f%%", utilizationThreshold),
			})
		}
	}
	return findings
}

// eventPatternAnalyzer groups warning events by reason so a recurring
// failure shows up as one weighted finding instead of noise.
type eventPatternAnalyzer struct{}

func (eventPatternAnalyzer) Name() string { return "event-pattern" }

// recurringEventCount at which a warning reason is escalated
const recurringEventCount = 3

func (a eventPatternAnalyzer) Analyze(snap *models.ClusterSnapshot) []models.Finding {
	counts := make(map[string]int)
	samples := make(map[string]string)
	var order []string

	for _, ev := range snap.Events {
		if ev.Type != corev1.EventTypeWarning {
			continue
		}
		reason := ev.Reason
		if reason == "" {
			reason = "Unknown"
		}
		if counts[reason] == 0 {
			order = append(order, reason)
			samples[reason] = strings.TrimSpace(ev.Message)
		}
		counts[reason] += max(1, int(ev.Count))
	}

	var findings []models.Finding
	for _, reason := range order {
		severity := models.SeverityLow
		if counts[reason] >= recurringEventCount {
			severity = models.SeverityMedium
		}
		findings = append(findings, models.Finding{
			Analyzer:    a.Name(),
			Severity:    severity,
			Description: fmt.Sprintf("Warning events: %s (x%d)", reason, counts[reason]),
			Resource:    "events",
			Detail:      samples[reason],
		})
	}
	return findings
}
