package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clusterguard/clusterguard/internal/action"
	"github.com/clusterguard/clusterguard/internal/audit"
	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	otelobs "github.com/clusterguard/clusterguard/internal/observability/otel"
	"github.com/clusterguard/clusterguard/internal/policy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// validateCmd group
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate proposed operations against policy",
	Long:  `Evaluate an action or a configuration against the loaded policy set.`,
}

var validateActionCmd = &cobra.Command{
	Use:   "action <type>",
	Short: "Validate a proposed infrastructure action",
	Long: `Evaluate a proposed action against the policy set plus built-in
action safeguards (destructive actions, production deletes, GPU fleets).

Example:
  clusterguard validate action create_cluster --set cloud=aws --set node_count=15 --set gpu_enabled=true`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runValidateAction,
}

var validateConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate a configuration object",
	Long: `Evaluate a desired-state configuration (workload spec, cluster
profile) against the policy set.

Example:
  clusterguard validate config --file ./workload.json`,
	SilenceUsage: true,
	RunE:         runValidateConfig,
}

var (
	validateFileFlag        string
	validateSetFlags        []string
	validateActorFlag       string
	validatePolicyFlag      string
	validatePresetFlags     []string
	validateCategoryFlags   []string
	validateAutoApproveFlag bool
	validateNoAuditFlag     bool
	validateJSONFlag        bool
)

func init() {
	for _, c := range []*cobra.Command{validateActionCmd, validateConfigCmd} {
		c.Flags().StringVarP(&validateFileFlag, "file", "f", "", "JSON file with subject fields")
		c.Flags().StringArrayVar(&validateSetFlags, "set", nil, "Set a subject field (key=value, dotted keys nest)")
		c.Flags().StringVar(&validateActorFlag, "actor", "", "Identity requesting the operation")
		c.Flags().StringVarP(&validatePolicyFlag, "policy", "P", "", "Policy file or directory (default: config, then built-in presets)")
		c.Flags().StringArrayVar(&validatePresetFlags, "preset", nil, "Built-in preset to load: security, cost, compliance")
		c.Flags().StringArrayVar(&validateCategoryFlags, "category", nil, "Restrict evaluation to these categories")
		c.Flags().BoolVar(&validateNoAuditFlag, "no-audit", false, "Skip writing the audit record")
		c.Flags().BoolVarP(&validateJSONFlag, "json", "j", false, "Emit the validation result as JSON")
	}
	validateActionCmd.Flags().BoolVar(&validateAutoApproveFlag, "auto-approve", false, "Suppress approval prompts for routine destructive actions")
	validateCmd.AddCommand(validateActionCmd)
	validateCmd.AddCommand(validateConfigCmd)
}

// GetValidateCmd export
func GetValidateCmd() *cobra.Command {
	return validateCmd
}

func runValidateAction(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "clusterguard.validate.action",
			trace.WithAttributes(
				attribute.String("clusterguard.op_id", observability.OpID(ctx)),
				attribute.String("clusterguard.command", "validate action"),
				attribute.String("clusterguard.action_type", args[0]),
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

	log.Event(ctx, "validate_action.start", map[string]any{"action_type": args[0]})

	var resultStatus string
	defer func() {
		log.Event(ctx, "validate_action.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	fields, fieldErr := subjectFields()
	if fieldErr != nil {
		resultStatus = "fail"
		return fieldErr
	}
	subject := models.NewAction(args[0], fields)
	subject.Actor = validateActorFlag

	store, storeErr := buildStore()
	if storeErr != nil {
		resultStatus = "fail"
		return storeErr
	}

	writer, writerErr := buildAuditWriter()
	if writerErr != nil {
		resultStatus = "fail"
		return writerErr
	}
	if writer != nil {
		defer func() { _ = writer.Close() }()
	}

	engine := policy.NewEngine(store, policy.WithLogger(log))

	opts := []action.Option{action.WithLogger(log)}
	if cats := categoryArgs(); len(cats) > 0 {
		opts = append(opts, action.WithCategories(cats...))
	}
	if runtimeConfig.GPUNodeThreshold > 0 {
		opts = append(opts, action.WithGPUNodeThreshold(runtimeConfig.GPUNodeThreshold))
	}
	if validateAutoApproveFlag {
		opts = append(opts, action.WithAutoApprove())
	}
	if writer != nil {
		opts = append(opts, action.WithAudit(writer))
	}
	validator := action.NewValidator(engine, opts...)

	result, valErr := validator.Validate(ctx, subject)
	if valErr != nil {
		resultStatus = "fail"
		return valErr
	}

	resultStatus = string(result.Decision)
	return printResult(subject, result, store)
}

func runValidateConfig(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	start := time.Now()

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "clusterguard.validate.config",
			trace.WithAttributes(
				attribute.String("clusterguard.op_id", observability.OpID(ctx)),
				attribute.String("clusterguard.command", "validate config"),
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

	log.Event(ctx, "validate_config.start", nil)

	var resultStatus string
	defer func() {
		log.Event(ctx, "validate_config.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      resultStatus,
		})
	}()

	fields, fieldErr := subjectFields()
	if fieldErr != nil {
		resultStatus = "fail"
		return fieldErr
	}
	if len(fields) == 0 {
		resultStatus = "fail"
		return fmt.Errorf("no configuration provided. Use --file or --set")
	}
	subject := models.NewConfiguration(fields)
	subject.Actor = validateActorFlag

	store, storeErr := buildStore()
	if storeErr != nil {
		resultStatus = "fail"
		return storeErr
	}

	writer, writerErr := buildAuditWriter()
	if writerErr != nil {
		resultStatus = "fail"
		return writerErr
	}
	if writer != nil {
		defer func() { _ = writer.Close() }()
	}

	engineOpts := []policy.EngineOption{policy.WithLogger(log)}
	if writer != nil {
		engineOpts = append(engineOpts, policy.WithAudit(writer))
		if runtimeConfig.AuditAllowed {
			engineOpts = append(engineOpts, policy.WithAuditAllowed())
		}
	}
	engine := policy.NewEngine(store, engineOpts...)

	result, valErr := engine.EvaluateSets(ctx, subject, categoryArgs()...)
	if valErr != nil {
		resultStatus = "fail"
		return valErr
	}

	resultStatus = string(result.Decision)
	return printResult(subject, result, store)
}

// subjectFields merges --file content with --set overrides
func subjectFields() (map[string]any, error) {
	fields := map[string]any{}
	if validateFileFlag != "" {
		data, err := os.ReadFile(validateFileFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to read subject file: %w", err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse subject file: %w", err)
		}
	}
	for _, kv := range validateSetFlags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		setField(fields, key, parseFieldValue(value))
	}
	return fields, nil
}

// setField writes a dotted key into nested maps, creating levels as
// needed. An intermediate non-map value is replaced.
func setField(fields map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	m := fields
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// parseFieldValue keeps flag values typed: bools and numbers compare
// numerically in conditions, everything else stays a string.
func parseFieldValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func categoryArgs() []models.Category {
	var categories []models.Category
	for _, c := range validateCategoryFlags {
		categories = append(categories, models.Category(c))
	}
	return categories
}

// buildStore loads policies from the --policy flag, then the config
// path, then the built-in presets.
func buildStore() (*policy.Store, error) {
	store, err := policy.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy store: %w", err)
	}
	if len(validatePresetFlags) > 0 {
		if err := store.LoadPresets(validatePresetFlags...); err != nil {
			return nil, err
		}
		return store, nil
	}
	path := validatePolicyFlag
	if path == "" {
		path = runtimeConfig.PolicyPath
	}
	if path == "" {
		if err := store.LoadDefaults(); err != nil {
			return nil, err
		}
		return store, nil
	}
	if err := store.Load(path); err != nil {
		return nil, err
	}
	return store, nil
}

func buildAuditWriter() (audit.Writer, error) {
	if validateNoAuditFlag || runtimeConfig.AuditPath == "" {
		return nil, nil
	}
	w, err := audit.NewWriter(runtimeConfig.AuditPath, audit.Rotation{
		MaxSizeMB:  runtimeConfig.AuditMaxSizeMB,
		MaxBackups: runtimeConfig.AuditMaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return w, nil
}

func printResult(subject *models.Subject, result *models.ValidationResult, store *policy.Store) error {
	if validateJSONFlag {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(output))
		if result.Blocked() {
			return fmt.Errorf("operation blocked by policy")
		}
		return nil
	}

	fmt.Printf("%s%sSubject:%s %s\n", colorBold, colorYellow, colorReset, subject.Summary())
	fmt.Printf("Policies loaded: %d (%s)\n\n", store.Len(), store.Source())

	if len(result.Violations) > 0 {
		fmt.Printf("%s%sViolations:%s\n", colorBold, colorYellow, colorReset)
		fmt.Println(strings.Repeat("-", 50))
		for _, v := range result.Violations {
			color := colorYellow
			mark := "⚠"
			if v.Response == models.ResponseBlock {
				color = colorRed
				mark = "✗"
			}
			fmt.Printf("%s%s%s %s [%s/%s]\n", color, mark, colorReset, v.Policy, v.Severity, v.Response)
			fmt.Printf("  %s→ %s%s\n", color, v.Message, colorReset)
			if v.Remediation != "" {
				fmt.Printf("    %s\n", v.Remediation)
			}
		}
		fmt.Println(strings.Repeat("-", 50))
	}

	switch result.Decision {
	case models.DecisionBlocked:
		fmt.Printf("\n%s%s✗ Blocked%s\n", colorBold, colorRed, colorReset)
		return fmt.Errorf("operation blocked by policy")
	case models.DecisionRequiresApproval:
		fmt.Printf("\n%s%s⚠ Requires approval%s\n", colorBold, colorYellow, colorReset)
		for _, reason := range result.ApprovalReasons() {
			fmt.Printf("  %s\n", reason)
		}
		return nil
	default:
		fmt.Printf("\n%s%s✓ Allowed%s\n", colorBold, colorGreen, colorReset)
		return nil
	}
}
