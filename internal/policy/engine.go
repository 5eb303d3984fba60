package policy

import (
	"context"
	"fmt"

	"github.com/clusterguard/clusterguard/internal/audit"
	"github.com/clusterguard/clusterguard/internal/models"
	"github.com/clusterguard/clusterguard/internal/observability/logging"
)

// Engine evaluates subjects against the loaded rule set. Safe for
// concurrent use: the store is read-only between loads and all
// evaluation state is call-local.
type Engine struct {
	store        *Store
	audit        audit.Writer
	auditAllowed bool
	log          logging.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithAudit attaches an audit writer. Blocked and approval-required
// decisions are always recorded; allowed decisions only with
// WithAuditAllowed.
func WithAudit(w audit.Writer) EngineOption {
	return func(e *Engine) { e.audit = w }
}

// WithAuditAllowed also records allowed decisions, for trend analysis
func WithAuditAllowed() EngineOption {
	return func(e *Engine) { e.auditAllowed = true }
}

// WithLogger sets the engine logger
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine over a store
func NewEngine(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store, log: logging.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every loaded rule against the subject and derives the
// decision. All matching rules are collected; the engine never stops
// at the first block, so the caller always sees the full violation set.
// Zero violations is the common case, not an error.
func (e *Engine) Evaluate(ctx context.Context, subject *models.Subject) (*models.ValidationResult, error) {
	return e.EvaluateSets(ctx, subject)
}

// EvaluateSets restricts evaluation to the given categories; with none
// given, every loaded category applies.
func (e *Engine) EvaluateSets(ctx context.Context, subject *models.Subject, categories ...models.Category) (*models.ValidationResult, error) {
	if subject == nil {
		return nil, fmt.Errorf("nil subject")
	}

	set := e.store.current()
	var violations []models.Violation
	var celInput map[string]any // built lazily, once

	for i, rule := range set.policies {
		if !categoryApplies(rule.Category, categories) {
			continue
		}

		matched := false
		if rule.Condition != nil {
			matched = Matches(rule.Condition, subject)
		} else {
			if celInput == nil {
				celInput = subject.CELInput()
			}
			out, _, err := set.programs[i].Eval(map[string]any{"subject": celInput})
			if err != nil {
				// Missing keys surface as eval errors; an absent
				// field means the condition is not satisfied.
				e.log.Debug("policy", "expr evaluation treated as no-match",
					"rule", rule.Name, "error", err.Error())
			} else if b, ok := out.Value().(bool); ok {
				matched = b
			}
		}

		if matched {
			violations = append(violations, models.Violation{
				Policy:      rule.Name,
				Category:    rule.Category,
				Severity:    rule.Severity,
				Response:    rule.Response,
				Message:     rule.Message,
				Subject:     subject.Summary(),
				Remediation: rule.Remediation,
			})
		}
	}

	result := models.NewValidationResult(violations)
	e.Record(ctx, subject, result)
	return result, nil
}

// Record appends an audit record for the result if the engine owns
// audit responsibility. Append failures degrade to an error log; they
// never turn a valid decision into a failure.
func (e *Engine) Record(ctx context.Context, subject *models.Subject, result *models.ValidationResult) {
	if e.audit == nil {
		return
	}
	if result.Decision == models.DecisionAllowed && !e.auditAllowed {
		return
	}
	if err := e.audit.Append(audit.NewRecord(subject, result)); err != nil {
		e.log.Error("policy", "audit append failed",
			"decision", string(result.Decision), "error", err.Error())
	}
	e.log.Event(ctx, "policy.decision", map[string]any{
		"decision":   string(result.Decision),
		"violations": len(result.Violations),
		"subject":    subject.Summary(),
	})
}

func categoryApplies(c models.Category, categories []models.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, want := range categories {
		if c == want {
			return true
		}
	}
	return false
}
