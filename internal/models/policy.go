package models

import "fmt"

// Category groups policies by governance concern
type Category string

const (
	CategorySecurity   Category = "security"
	CategoryCost       Category = "cost"
	CategoryCompliance Category = "compliance"
)

// Severity of a violation
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities, critical first
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// ValidSeverity reports whether s is one of the known levels
func ValidSeverity(s Severity) bool {
	return s.Rank() < 4
}

// ResponseMode is what a matched policy asks for
type ResponseMode string

const (
	ResponseWarn            ResponseMode = "warn"
	ResponseBlock           ResponseMode = "block"
	ResponseRequireApproval ResponseMode = "require_approval"
)

// ValidResponse reports whether m is a known response mode
func ValidResponse(m ResponseMode) bool {
	switch m {
	case ResponseWarn, ResponseBlock, ResponseRequireApproval:
		return true
	}
	return false
}

// Operator for typed conditions
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpIn      Operator = "in"
	OpNotIn   Operator = "not_in"
	OpPresent Operator = "present"
	OpAbsent  Operator = "absent"
)

// ValidOperator reports whether op is supported
func ValidOperator(op Operator) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpPresent, OpAbsent:
		return true
	}
	return false
}

// Condition is a typed predicate over one subject field.
// Value is ignored for present/absent.
type Condition struct {
	Field string   `yaml:"field" json:"field"`
	Op    Operator `yaml:"op" json:"op"`
	Value any      `yaml:"value,omitempty" json:"value,omitempty"`
}

// Policy is one declarative rule. Exactly one of Condition or Expr is
// set; Expr is a CEL expression over `subject` for composite predicates
// a single field test cannot express.
type Policy struct {
	Name        string       `yaml:"name" json:"name"`
	Category    Category     `yaml:"category,omitempty" json:"category"`
	Severity    Severity     `yaml:"severity" json:"severity"`
	Response    ResponseMode `yaml:"response" json:"response"`
	Message     string       `yaml:"message" json:"message"`
	Condition   *Condition   `yaml:"condition,omitempty" json:"condition,omitempty"`
	Expr        string       `yaml:"expr,omitempty" json:"expr,omitempty"`
	Remediation string       `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// Validate checks structural soundness, not expression compilability
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy missing name")
	}
	if !ValidSeverity(p.Severity) {
		return fmt.Errorf("policy %q: unknown severity %q", p.Name, p.Severity)
	}
	if !ValidResponse(p.Response) {
		return fmt.Errorf("policy %q: unknown response %q", p.Name, p.Response)
	}
	if p.Message == "" {
		return fmt.Errorf("policy %q: missing message", p.Name)
	}
	if (p.Condition == nil) == (p.Expr == "") {
		return fmt.Errorf("policy %q: exactly one of condition or expr must be set", p.Name)
	}
	if p.Condition != nil {
		if p.Condition.Field == "" {
			return fmt.Errorf("policy %q: condition missing field", p.Name)
		}
		if !ValidOperator(p.Condition.Op) {
			return fmt.Errorf("policy %q: unknown operator %q", p.Name, p.Condition.Op)
		}
	}
	return nil
}

// PolicyDocument is one YAML policy file: a named group of rules
// sharing a default category.
type PolicyDocument struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Category    Category `yaml:"category,omitempty"`
	Rules       []Policy `yaml:"rules"`
}
