package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clusterguard/clusterguard/internal/audit"
	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/spf13/cobra"
)

// auditCmd group
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log commands",
	Long:  `Read the append-only decision log.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions",
	Long: `Print audit records in file order, newest last.

Example:
  clusterguard audit list --action-type delete_cluster --since 24h`,
	SilenceUsage: true,
	RunE:         runAuditList,
}

var (
	auditPathFlag       string
	auditActionTypeFlag string
	auditSinceFlag      time.Duration
	auditLimitFlag      int
	auditJSONFlag       bool
)

func init() {
	auditListCmd.Flags().StringVar(&auditPathFlag, "path", "", "Audit log path (default from config)")
	auditListCmd.Flags().StringVar(&auditActionTypeFlag, "action-type", "", "Only records for this action type")
	auditListCmd.Flags().DurationVar(&auditSinceFlag, "since", 0, "Only records newer than this (e.g. 24h)")
	auditListCmd.Flags().IntVarP(&auditLimitFlag, "limit", "n", 0, "Keep only the newest N records")
	auditListCmd.Flags().BoolVarP(&auditJSONFlag, "json", "j", false, "Emit records as JSON")
	auditCmd.AddCommand(auditListCmd)
}

// GetAuditCmd export
func GetAuditCmd() *cobra.Command {
	return auditCmd
}

func runAuditList(cmd *cobra.Command, args []string) error {
	path := auditPathFlag
	if path == "" {
		path = runtimeConfig.AuditPath
	}
	if path == "" {
		return fmt.Errorf("no audit log path configured")
	}

	filter := audit.Filter{ActionType: auditActionTypeFlag}
	if auditSinceFlag > 0 {
		filter.Since = time.Now().Add(-auditSinceFlag)
	}

	records, err := audit.Read(path, filter)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	if auditLimitFlag > 0 && len(records) > auditLimitFlag {
		records = records[len(records)-auditLimitFlag:]
	}

	if auditJSONFlag {
		output, marshalErr := json.MarshalIndent(records, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal records: %w", marshalErr)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No matching records.")
		return nil
	}
	for _, r := range records {
		color := colorYellow
		if r.Decision == string(models.DecisionBlocked) {
			color = colorRed
		} else if r.Decision == string(models.DecisionAllowed) {
			color = colorGreen
		}
		fmt.Printf("%s%-18s%s %s %s", color, r.Decision, colorReset, r.Timestamp.Format(time.RFC3339), r.Summary)
		if r.Actor != "" {
			fmt.Printf(" (actor: %s)", r.Actor)
		}
		fmt.Println()
		for _, v := range r.Violations {
			fmt.Printf("    %s [%s/%s] %s\n", v.Policy, v.Severity, v.Response, v.Message)
		}
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}
