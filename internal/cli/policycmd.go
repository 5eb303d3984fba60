package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	otelobs "github.com/clusterguard/clusterguard/internal/observability/otel"
	"github.com/clusterguard/clusterguard/internal/policy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// policyCmd group
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy management commands",
	Long:  `Inspect and lint the governance policy set.`,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the loaded policy set",
	Long: `Load policies the same way validation does and print them.

Example:
  clusterguard policy show --policy ./policies/ --format yaml`,
	SilenceUsage: true,
	RunE:         runPolicyShow,
}

var policyLintCmd = &cobra.Command{
	Use:     "lint <path>",
	Aliases: []string{"check"},
	Short:   "Validate a policy file or directory",
	Long: `Parse, validate, and compile every rule. Reports every problem,
not just the first.

Example:
  clusterguard policy lint ./policies/`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runPolicyLint,
}

var policyFormatFlag string

func init() {
	policyShowCmd.Flags().StringVarP(&validatePolicyFlag, "policy", "P", "", "Policy file or directory (default: config, then built-in presets)")
	policyShowCmd.Flags().StringArrayVar(&validatePresetFlags, "preset", nil, "Built-in preset to load: security, cost, compliance")
	policyShowCmd.Flags().StringVar(&policyFormatFlag, "format", "yaml", "Output format: yaml or json")
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyLintCmd)
}

// GetPolicyCmd export
func GetPolicyCmd() *cobra.Command {
	return policyCmd
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	policies := store.Policies()
	fmt.Printf("%s%sPolicies:%s %d (%s)\n\n", colorBold, colorYellow, colorReset, len(policies), store.Source())

	var output []byte
	switch policyFormatFlag {
	case "json":
		output, err = json.MarshalIndent(policies, "", "  ")
	case "yaml":
		output, err = yaml.Marshal(policies)
	default:
		return fmt.Errorf("unknown format %q (use 'yaml' or 'json')", policyFormatFlag)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal policies: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

func runPolicyLint(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "clusterguard.policy.lint",
			trace.WithAttributes(
				attribute.String("clusterguard.op_id", observability.OpID(ctx)),
				attribute.String("clusterguard.command", "policy lint"),
				attribute.String("clusterguard.path", args[0]),
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

	log.Event(ctx, "policy_lint.start", map[string]any{"path": args[0]})

	var resultStatus string
	defer func() {
		log.Event(ctx, "policy_lint.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	store, storeErr := policy.NewStore()
	if storeErr != nil {
		resultStatus = "fail"
		return fmt.Errorf("failed to create policy store: %w", storeErr)
	}

	if loadErr := store.Load(args[0]); loadErr != nil {
		resultStatus = "fail"
		var cfgErr *models.ConfigurationError
		if errors.As(loadErr, &cfgErr) {
			fmt.Printf("%s%s✗ Policy set invalid%s (%s)\n", colorBold, colorRed, colorReset, cfgErr.Source)
			fmt.Println(strings.Repeat("-", 50))
			for _, problem := range cfgErr.Problems {
				fmt.Printf("%s✗%s %s\n", colorRed, colorReset, problem)
			}
			fmt.Println(strings.Repeat("-", 50))
			return fmt.Errorf("policy lint failed: %d problem(s)", len(cfgErr.Problems))
		}
		return loadErr
	}

	resultStatus = "success"
	fmt.Printf("%s%s✓ %d policies valid%s\n", colorBold, colorGreen, store.Len(), colorReset)
	return nil
}
