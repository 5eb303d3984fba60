package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/clusterguard/clusterguard/internal/audit"
	"github.com/clusterguard/clusterguard/internal/models"
)

func newTestStore(t *testing.T, docs ...models.PolicyDocument) *Store {
	t.Helper()
	store, err := NewStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if len(docs) > 0 {
		if err := store.install(docs, "test"); err != nil {
			t.Fatalf("failed to install test policies: %v", err)
		}
	}
	return store
}

func securityDoc(rules ...models.Policy) models.PolicyDocument {
	return models.PolicyDocument{Name: "test", Category: models.CategorySecurity, Rules: rules}
}

func TestEvaluateEmptyStoreAllows(t *testing.T) {
	engine := NewEngine(newTestStore(t))
	subject := models.NewAction("create_cluster", map[string]any{"cloud": "aws"})

	result, err := engine.Evaluate(context.Background(), subject)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Decision != models.DecisionAllowed {
		t.Errorf("decision = %q, want allowed", result.Decision)
	}
	if len(result.Violations) != 0 {
		t.Errorf("violations = %v, want none", result.Violations)
	}
}

func TestEvaluateCollectsAllViolations(t *testing.T) {
	store := newTestStore(t, securityDoc(
		models.Policy{
			Name: "block_privileged", Severity: models.SeverityCritical,
			Response: models.ResponseBlock, Message: "privileged not allowed",
			Condition: &models.Condition{Field: "privileged", Op: models.OpEq, Value: true},
		},
		models.Policy{
			Name: "warn_latest_tag", Severity: models.SeverityLow,
			Response: models.ResponseWarn, Message: "avoid :latest",
			Condition: &models.Condition{Field: "image_tag", Op: models.OpEq, Value: "latest"},
		},
		models.Policy{
			Name: "approve_big", Severity: models.SeverityMedium,
			Response: models.ResponseRequireApproval, Message: "large cluster",
			Condition: &models.Condition{Field: "node_count", Op: models.OpGt, Value: 10},
		},
	))
	engine := NewEngine(store)

	subject := models.NewAction("create_cluster", map[string]any{
		"privileged": true,
		"image_tag":  "latest",
		"node_count": 50,
	})
	result, err := engine.Evaluate(context.Background(), subject)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	// no short-circuit on block: every matching rule reports
	if len(result.Violations) != 3 {
		t.Fatalf("got %d violations, want 3: %+v", len(result.Violations), result.Violations)
	}
	// load order preserved
	if result.Violations[0].Policy != "block_privileged" || result.Violations[2].Policy != "approve_big" {
		t.Errorf("violations out of load order: %+v", result.Violations)
	}
	// block wins over require_approval
	if result.Decision != models.DecisionBlocked {
		t.Errorf("decision = %q, want blocked", result.Decision)
	}
	if !result.RequiresApproval {
		t.Error("RequiresApproval should still be set alongside a block")
	}
}

func TestEvaluateWarnOnlyAllows(t *testing.T) {
	store := newTestStore(t, securityDoc(models.Policy{
		Name: "warn_only", Severity: models.SeverityLow,
		Response: models.ResponseWarn, Message: "just a warning",
		Condition: &models.Condition{Field: "cloud", Op: models.OpEq, Value: "aws"},
	}))
	engine := NewEngine(store)

	result, err := engine.Evaluate(context.Background(), models.NewAction("create_cluster", map[string]any{"cloud": "aws"}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Decision != models.DecisionAllowed {
		t.Errorf("decision = %q, want allowed", result.Decision)
	}
	if len(result.Violations) != 1 {
		t.Errorf("got %d violations, want 1", len(result.Violations))
	}
}

func TestEvaluateExprRules(t *testing.T) {
	store := newTestStore(t, securityDoc(models.Policy{
		Name: "unlimited_containers", Severity: models.SeverityMedium,
		Response: models.ResponseWarn, Message: "container without limits",
		Expr:     `has(subject.containers) && subject.containers.exists(c, !has(c.resources))`,
	}))
	engine := NewEngine(store)

	tests := []struct {
		name   string
		fields map[string]any
		want   int
	}{
		{
			"container missing resources",
			map[string]any{"containers": []any{map[string]any{"name": "app"}}},
			1,
		},
		{
			"container with resources",
			map[string]any{"containers": []any{map[string]any{"name": "app", "resources": map[string]any{"limits": map[string]any{"cpu": "1"}}}}},
			0,
		},
		{
			// absent field means the rule is not satisfied
			"no containers field at all",
			map[string]any{"cloud": "aws"},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Evaluate(context.Background(), models.NewConfiguration(tt.fields))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(result.Violations) != tt.want {
				t.Errorf("got %d violations, want %d", len(result.Violations), tt.want)
			}
		})
	}
}

func TestEvaluateSetsFiltersByCategory(t *testing.T) {
	store := newTestStore(t,
		models.PolicyDocument{Name: "sec", Category: models.CategorySecurity, Rules: []models.Policy{{
			Name: "sec_rule", Severity: models.SeverityHigh, Response: models.ResponseBlock,
			Message: "security", Condition: &models.Condition{Field: "flag", Op: models.OpEq, Value: true},
		}}},
		models.PolicyDocument{Name: "cost", Category: models.CategoryCost, Rules: []models.Policy{{
			Name: "cost_rule", Severity: models.SeverityLow, Response: models.ResponseWarn,
			Message: "cost", Condition: &models.Condition{Field: "flag", Op: models.OpEq, Value: true},
		}}},
	)
	engine := NewEngine(store)
	subject := models.NewAction("create_cluster", map[string]any{"flag": true})

	result, err := engine.EvaluateSets(context.Background(), subject, models.CategoryCost)
	if err != nil {
		t.Fatalf("EvaluateSets failed: %v", err)
	}
	if len(result.Violations) != 1 || result.Violations[0].Policy != "cost_rule" {
		t.Errorf("category filter failed: %+v", result.Violations)
	}

	// no categories means all categories
	result, err = engine.EvaluateSets(context.Background(), subject)
	if err != nil {
		t.Fatalf("EvaluateSets failed: %v", err)
	}
	if len(result.Violations) != 2 {
		t.Errorf("got %d violations, want 2", len(result.Violations))
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	store := newTestStore(t, securityDoc(models.Policy{
		Name: "approve_big", Severity: models.SeverityMedium,
		Response: models.ResponseRequireApproval, Message: "large cluster",
		Condition: &models.Condition{Field: "node_count", Op: models.OpGt, Value: 10},
	}))
	engine := NewEngine(store)
	subject := models.NewAction("create_cluster", map[string]any{"node_count": 15})

	var first *models.ValidationResult
	for i := 0; i < 5; i++ {
		result, err := engine.Evaluate(context.Background(), subject)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if first == nil {
			first = result
			continue
		}
		if result.Decision != first.Decision || len(result.Violations) != len(first.Violations) {
			t.Fatalf("evaluation %d diverged: %+v vs %+v", i, result, first)
		}
	}
}

func TestEvaluateRecordsAudit(t *testing.T) {
	store := newTestStore(t, securityDoc(models.Policy{
		Name: "block_privileged", Severity: models.SeverityCritical,
		Response: models.ResponseBlock, Message: "privileged not allowed",
		Condition: &models.Condition{Field: "privileged", Op: models.OpEq, Value: true},
	}))

	var buf bytes.Buffer
	engine := NewEngine(store, WithAudit(audit.NewWriterTo(&buf)))

	// allowed decision: not recorded by default
	_, err := engine.Evaluate(context.Background(), models.NewAction("create_cluster", map[string]any{}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("allowed decision was recorded: %s", buf.String())
	}

	// blocked decision: recorded
	subject := models.NewAction("create_cluster", map[string]any{"privileged": true})
	subject.Actor = "agent-1"
	_, err = engine.Evaluate(context.Background(), subject)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	var rec audit.Record
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("audit record is not valid JSON: %v", err)
	}
	if rec.Decision != string(models.DecisionBlocked) {
		t.Errorf("recorded decision = %q, want blocked", rec.Decision)
	}
	if rec.Actor != "agent-1" {
		t.Errorf("recorded actor = %q, want agent-1", rec.Actor)
	}
	if len(rec.Violations) != 1 {
		t.Errorf("recorded %d violations, want 1", len(rec.Violations))
	}
}

func TestEvaluateAuditAllowed(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine(newTestStore(t), WithAudit(audit.NewWriterTo(&buf)), WithAuditAllowed())

	_, err := engine.Evaluate(context.Background(), models.NewAction("create_cluster", map[string]any{}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("allowed decision not recorded with WithAuditAllowed")
	}
}

func TestEvaluatePresetScenarios(t *testing.T) {
	store, err := NewStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}
	engine := NewEngine(store)

	tests := []struct {
		name     string
		subject  *models.Subject
		decision models.Decision
		policy   string
	}{
		{
			"privileged container blocked",
			models.NewConfiguration(map[string]any{
				"security_context": map[string]any{"privileged": true},
			}),
			models.DecisionBlocked,
			"no_privileged_containers",
		},
		{
			"unapproved registry blocked",
			models.NewConfiguration(map[string]any{"image_registry": "sketchy.example.com"}),
			models.DecisionBlocked,
			"approved_registries_only",
		},
		{
			"unencrypted storage blocked",
			models.NewConfiguration(map[string]any{
				"storage": map[string]any{"encrypted": false},
			}),
			models.DecisionBlocked,
			"encryption_at_rest",
		},
		{
			"oversized cluster needs approval",
			models.NewAction("create_cluster", map[string]any{"node_count": 11}),
			models.DecisionRequiresApproval,
			"max_node_count",
		},
		{
			"threshold boundary allowed",
			models.NewAction("create_cluster", map[string]any{"node_count": 10}),
			models.DecisionAllowed,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Evaluate(context.Background(), tt.subject)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Decision != tt.decision {
				t.Fatalf("decision = %q, want %q (violations: %+v)", result.Decision, tt.decision, result.Violations)
			}
			if tt.policy != "" {
				found := false
				for _, v := range result.Violations {
					if v.Policy == tt.policy {
						found = true
					}
				}
				if !found {
					t.Errorf("expected violation of %q, got %+v", tt.policy, result.Violations)
				}
			}
		})
	}
}
