package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clusterguard/clusterguard/internal/observability"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	otelobs "github.com/clusterguard/clusterguard/internal/observability/otel"
	"github.com/clusterguard/clusterguard/internal/prompt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var promptCmd = &cobra.Command{
	Use:   "prompt <text>",
	Short: "Screen a prompt before it reaches an agent",
	Long: `Check free-text input for injection attempts and out-of-scope
requests.

Example:
  clusterguard prompt "Scale the staging cluster to 5 nodes"`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPrompt,
}

var promptJSONFlag bool

func init() {
	promptCmd.Flags().BoolVarP(&promptJSONFlag, "json", "j", false, "Emit the check result as JSON")
}

// GetPromptCmd export
func GetPromptCmd() *cobra.Command {
	return promptCmd
}

func runPrompt(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "clusterguard.prompt",
			trace.WithAttributes(
				attribute.String("clusterguard.op_id", observability.OpID(ctx)),
				attribute.String("clusterguard.command", "prompt"),
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

	log.Event(ctx, "prompt_check.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "prompt_check.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	text := strings.Join(args, " ")
	result := prompt.Check(text)

	if promptJSONFlag {
		output, marshalErr := json.MarshalIndent(result, "", "  ")
		if marshalErr != nil {
			resultStatus = "fail"
			return fmt.Errorf("failed to marshal result: %w", marshalErr)
		}
		fmt.Println(string(output))
	} else {
		if result.Blocked {
			fmt.Printf("%s%s✗ Prompt blocked%s\n", colorBold, colorRed, colorReset)
			for _, reason := range result.Reasons {
				fmt.Printf("  %s→ %s%s\n", colorRed, reason, colorReset)
			}
		} else {
			fmt.Printf("%s%s✓ Prompt accepted%s\n", colorBold, colorGreen, colorReset)
		}
		for _, warning := range result.Warnings {
			fmt.Printf("  %s⚠ %s%s\n", colorYellow, warning, colorReset)
		}
	}

	if result.Blocked {
		resultStatus = "blocked"
		return fmt.Errorf("prompt blocked")
	}
	resultStatus = "accepted"
	return nil
}
