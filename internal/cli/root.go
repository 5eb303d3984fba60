package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clusterguard/clusterguard/internal/config"
	"github.com/clusterguard/clusterguard/internal/observability"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	otelobs "github.com/clusterguard/clusterguard/internal/observability/otel"
	"github.com/clusterguard/clusterguard/internal/version"
	"github.com/spf13/cobra"
)

// ANSI modifiers for terminal output
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

var rootCmd = &cobra.Command{
	Use:   "clusterguard",
	Short: "Governance layer for AI-initiated infrastructure operations",
	Long: `clusterguard: policy enforcement for AI cluster operators.
Validates proposed actions, screens prompts, and diagnoses cluster health
before an AI agent is allowed to touch infrastructure.`,
	Version:           version.BuildVersion(),
	PersistentPreRunE: setupRun,
	PersistentPostRun: teardownRun,
}

var (
	logFormatFlag string
	logLevelFlag  string
	logOutputFlag string

	otelFlag            bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelSampleRatioFlag float64
)

// runtime state shared by subcommands, built in setupRun
var (
	runtimeConfig *config.Config
	runtimeLog    logging.Logger
	otelHandle    *otelobs.Handle
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: jsonl or pretty (default from config)")
	pf.StringVar(&logLevelFlag, "log-level", "", "Minimum log level: debug, info, warn, error")
	pf.StringVar(&logOutputFlag, "log-output", "", "Log destination: stderr or a file path")
	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow OTLP export without TLS")
	pf.Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0, "Trace sampling ratio (0..1)")

	rootCmd.AddCommand(GetValidateCmd())
	rootCmd.AddCommand(GetPromptCmd())
	rootCmd.AddCommand(GetDiagnoseCmd())
	rootCmd.AddCommand(GetPolicyCmd())
	rootCmd.AddCommand(GetAuditCmd())
}

// setupRun loads config and installs the op ID, logger, and optional
// OTel handle into the command context before any subcommand runs.
func setupRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	runtimeConfig = cfg

	logCfg := logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: cfg.LogOutput,
	}
	if logFormatFlag != "" {
		logCfg.Format = logFormatFlag
	}
	if logLevelFlag != "" {
		logCfg.Level = logLevelFlag
	}
	if logOutputFlag != "" {
		logCfg.Output = logOutputFlag
	}
	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	runtimeLog = log

	ctx := observability.WithOpID(cmd.Context())
	ctx = logging.WithLogger(ctx, log)

	if otelFlag {
		otelCfg := otelobs.DefaultConfig()
		otelCfg.Enabled = true
		otelCfg.Endpoint = otelEndpointFlag
		otelCfg.Protocol = otelProtocolFlag
		otelCfg.Insecure = otelInsecureFlag
		otelCfg.SampleRatio = otelSampleRatioFlag
		handle, err := otelobs.Init(ctx, otelCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		otelHandle = handle
		ctx = otelobs.WithHandle(ctx, handle)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownRun(cmd *cobra.Command, args []string) {
	if otelHandle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = otelHandle.Shutdown(ctx)
		cancel()
	}
	if runtimeLog != nil {
		_ = runtimeLog.Close()
	}
}
