package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clusterguard/clusterguard/internal/diagnose"
	"github.com/clusterguard/clusterguard/internal/kube"
	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	otelobs "github.com/clusterguard/clusterguard/internal/observability/otel"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <cluster-id>",
	Short: "Score cluster health from a live snapshot",
	Long: `Gather a cluster snapshot, run the diagnostic analyzers, and report
a health score with findings and recommendations.

Example:
  clusterguard diagnose prod-east --kubeconfig ~/.kube/config`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runDiagnose,
}

var (
	diagnoseKubeconfigFlag string
	diagnoseEnrichFlag     bool
	diagnoseJSONFlag       bool
)

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseKubeconfigFlag, "kubeconfig", "", "Path to kubeconfig (default: config, then in-cluster)")
	diagnoseCmd.Flags().BoolVar(&diagnoseEnrichFlag, "enrich", false, "Request a model-written narrative (needs enrichment config)")
	diagnoseCmd.Flags().BoolVarP(&diagnoseJSONFlag, "json", "j", false, "Emit the diagnosis as JSON")
}

// GetDiagnoseCmd export
func GetDiagnoseCmd() *cobra.Command {
	return diagnoseCmd
}

func runDiagnose(cmd *cobra.Command, args []string) (err error) {
	clusterID := args[0]
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "clusterguard.diagnose",
			trace.WithAttributes(
				attribute.String("clusterguard.op_id", observability.OpID(ctx)),
				attribute.String("clusterguard.command", "diagnose"),
				attribute.String("clusterguard.cluster_id", clusterID),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, "diagnose.start", map[string]any{"cluster_id": clusterID})

	var resultStatus string
	defer func() {
		log.Event(ctx, "diagnose.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	kubeconfig := diagnoseKubeconfigFlag
	if kubeconfig == "" {
		kubeconfig = runtimeConfig.Kubeconfig
	}
	provider, provErr := kube.NewFromKubeconfig(kubeconfig)
	if provErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to connect to cluster: %w", provErr)
	}

	opts := []diagnose.PipelineOption{diagnose.WithLogger(log)}
	if diagnoseEnrichFlag || runtimeConfig.Enrichment.Enabled {
		if runtimeConfig.Enrichment.Endpoint == "" {
			resultStatus = "fail"
			return fmt.Errorf("enrichment requested but no endpoint configured")
		}
		opts = append(opts,
			diagnose.WithEnricher(diagnose.NewHTTPEnricher(diagnose.HTTPEnricherConfig{
				Endpoint: runtimeConfig.Enrichment.Endpoint,
				APIKey:   runtimeConfig.Enrichment.APIKey,
				Model:    runtimeConfig.Enrichment.Model,
			})),
			diagnose.WithEnrichTimeout(runtimeConfig.Enrichment.Timeout()),
		)
	}
	pipeline := diagnose.NewPipeline(provider, opts...)

	diagnosis, diagErr := pipeline.Diagnose(ctx, clusterID)
	if diagErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("diagnosis failed: %w", diagErr)
	}

	resultStatus = strings.ToLower(diagnosis.Status)
	if diagnoseJSONFlag {
		output, marshalErr := json.MarshalIndent(diagnosis, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal diagnosis: %w", marshalErr)
		}
		fmt.Println(string(output))
		return nil
	}

	printDiagnosis(diagnosis)
	return nil
}

func printDiagnosis(d *models.Diagnosis) {
	statusColor := colorGreen
	switch d.Status {
	case diagnose.StatusCritical, diagnose.StatusWarning:
		statusColor = colorRed
	case diagnose.StatusDegraded:
		statusColor = colorYellow
	}
	fmt.Printf("%s%sCluster:%s %s\n", colorBold, colorYellow, colorReset, d.ClusterID)
	fmt.Printf("%sHealth: %d/100 (%s)%s\n\n", statusColor, d.Score, d.Status, colorReset)

	if len(d.Findings) > 0 {
		fmt.Printf("%s%sFindings:%s %d critical, %d high, %d medium, %d low\n",
			colorBold, colorYellow, colorReset,
			d.Summary.Critical, d.Summary.High, d.Summary.Medium, d.Summary.Low)
		fmt.Println(strings.Repeat("-", 50))
		for _, f := range d.Findings {
			color := colorYellow
			if f.Severity == models.SeverityCritical || f.Severity == models.SeverityHigh {
				color = colorRed
			}
			fmt.Printf("%s[%s]%s %s: %s\n", color, strings.ToUpper(string(f.Severity)), colorReset, f.Analyzer, f.Description)
			if f.Resource != "" {
				fmt.Printf("  resource: %s\n", f.Resource)
			}
		}
		fmt.Println(strings.Repeat("-", 50))
	}

	if len(d.Recommendations) > 0 {
		fmt.Printf("\n%s%sRecommendations:%s\n", colorBold, colorYellow, colorReset)
		for _, r := range d.Recommendations {
			fmt.Printf("  • %s\n", r)
		}
	}

	if d.Narrative != "" {
		fmt.Printf("\n%s\n", d.Narrative)
	}
}
