// Package action validates AI-proposed infrastructure mutations. It
// layers composite checks over the declarative policy engine for the
// cases a single-field rule cannot express.
package action

import (
	"context"
	"fmt"

	"github.com/clusterguard/clusterguard/internal/audit"
	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
	"github.com/clusterguard/clusterguard/internal/policy"
)

// DefaultGPUNodeThreshold is the node count above which a GPU-enabled
// cluster needs approval even without a matching declarative policy.
const DefaultGPUNodeThreshold = 10

// destructiveActions always require explicit approval
var destructiveActions = map[string]struct{}{
	"delete_cluster": {},
	"delete_profile": {},
	"scale_down":     {},
	"terminate_node": {},
	"remove_pack":    {},
}

// approvalActions require approval per organizational policy
var approvalActions = map[string]struct{}{
	"create_cluster":    {},
	"upgrade_cluster":   {},
	"modify_production": {},
	"change_network":    {},
}

// Validator wraps the policy engine with action-specific checks.
// Composite violations are merged with the declarative set before the
// decision is derived, so block still beats approval beats allow.
type Validator struct {
	engine           *policy.Engine
	categories       []models.Category
	gpuNodeThreshold int
	autoApprove      bool
	audit            audit.Writer
	log              logging.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithCategories restricts declarative evaluation to these categories.
// Composite checks always run.
func WithCategories(categories ...models.Category) Option {
	return func(v *Validator) { v.categories = categories }
}

// WithGPUNodeThreshold overrides the GPU fleet-size threshold
func WithGPUNodeThreshold(n int) Option {
	return func(v *Validator) { v.gpuNodeThreshold = n }
}

// WithAutoApprove suppresses the approval-only composite checks, for
// automation contexts. Declarative violations are never suppressed.
func WithAutoApprove() Option {
	return func(v *Validator) { v.autoApprove = true }
}

// WithAudit makes the validator own audit responsibility for the
// merged result. The wrapped engine should not carry its own writer,
// or decisions get recorded twice.
func WithAudit(w audit.Writer) Option {
	return func(v *Validator) { v.audit = w }
}

// WithLogger sets the validator logger
func WithLogger(l logging.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// NewValidator creates a validator over an engine
func NewValidator(engine *policy.Engine, opts ...Option) *Validator {
	v := &Validator{
		engine:           engine,
		gpuNodeThreshold: DefaultGPUNodeThreshold,
		log:              logging.Noop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate evaluates a proposed action. The declarative result comes
// first in the violation list (load order), composite checks after.
func (v *Validator) Validate(ctx context.Context, act *models.Subject) (*models.ValidationResult, error) {
	if act == nil || act.Kind != models.SubjectAction {
		return nil, fmt.Errorf("action validator requires an action subject")
	}

	engineResult, err := v.engine.EvaluateSets(ctx, act, v.categories...)
	if err != nil {
		return nil, err
	}

	violations := append([]models.Violation{}, engineResult.Violations...)
	violations = append(violations, v.compositeChecks(act)...)

	result := models.NewValidationResult(violations)
	if v.audit != nil && (result.Decision != models.DecisionAllowed) {
		if err := v.audit.Append(audit.NewRecord(act, result)); err != nil {
			v.log.Error("action", "audit append failed",
				"decision", string(result.Decision), "error", err.Error())
		}
	}
	return result, nil
}

// compositeChecks are the heuristics beyond single-field rules
func (v *Validator) compositeChecks(act *models.Subject) []models.Violation {
	var out []models.Violation

	// Production cluster deletion needs approval no matter what else
	// the action carries. Not subject to auto-approve.
	if act.Type == "delete_cluster" {
		if env, ok := act.Field("environment"); ok && env == "production" {
			out = append(out, models.Violation{
				Policy:   "production_cluster_delete",
				Severity: models.SeverityCritical,
				Response: models.ResponseRequireApproval,
				Message:  "Deleting a production cluster requires explicit approval",
				Subject:  act.Summary(),
			})
		}
	}

	// GPU fleets above the threshold are a cost heuristic that no
	// single declarative threshold captures.
	if gpu, ok := act.Field("gpu_enabled"); ok && gpu == true {
		if n, ok := act.Field("node_count"); ok {
			if count, isNum := toInt(n); isNum && count > v.gpuNodeThreshold {
				out = append(out, models.Violation{
					Policy:   "gpu_fleet_size",
					Severity: models.SeverityHigh,
					Response: models.ResponseRequireApproval,
					Message:  fmt.Sprintf("GPU-enabled cluster with %d nodes exceeds the %d-node threshold", count, v.gpuNodeThreshold),
					Subject:  act.Summary(),
				})
			}
		}
	}

	if v.autoApprove {
		return out
	}

	if _, destructive := destructiveActions[act.Type]; destructive {
		out = append(out, models.Violation{
			Policy:   "destructive_action",
			Severity: models.SeverityHigh,
			Response: models.ResponseRequireApproval,
			Message:  fmt.Sprintf("Destructive action %q requires explicit approval", act.Type),
			Subject:  act.Summary(),
		})
	} else if _, approval := approvalActions[act.Type]; approval {
		out = append(out, models.Violation{
			Policy:   "approval_required_action",
			Severity: models.SeverityMedium,
			Response: models.ResponseRequireApproval,
			Message:  fmt.Sprintf("Action %q requires approval per policy", act.Type),
			Subject:  act.Summary(),
		})
	}

	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
