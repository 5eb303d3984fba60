package models

// Decision is the engine's final verdict for one subject
type Decision string

const (
	DecisionAllowed          Decision = "allowed"
	DecisionRequiresApproval Decision = "requires_approval"
	DecisionBlocked          Decision = "blocked"
)

// Violation is evidence that one policy's condition matched a subject.
// Immutable once produced. Response is carried so merged violation
// sets can re-derive a decision.
type Violation struct {
	Policy      string       `json:"policy"`
	Category    Category     `json:"category,omitempty"`
	Severity    Severity     `json:"severity"`
	Response    ResponseMode `json:"response"`
	Message     string       `json:"message"`
	Subject     string       `json:"subject"`
	Remediation string       `json:"remediation,omitempty"`
}

// ValidationResult is the full outcome of evaluating one subject.
// Violations keep load order for declarative rules; composite checks
// append after them.
type ValidationResult struct {
	Violations       []Violation `json:"violations"`
	Decision         Decision    `json:"decision"`
	RequiresApproval bool        `json:"requires_approval"`
}

// NewValidationResult derives the decision from a violation set.
// block beats require_approval beats warn; warn-only violations
// annotate an allowed result without changing it.
func NewValidationResult(violations []Violation) *ValidationResult {
	if violations == nil {
		violations = []Violation{}
	}
	decision := DecisionAllowed
	approval := false
	for _, v := range violations {
		switch v.Response {
		case ResponseBlock:
			decision = DecisionBlocked
		case ResponseRequireApproval:
			approval = true
		}
	}
	if decision != DecisionBlocked && approval {
		decision = DecisionRequiresApproval
	}
	return &ValidationResult{
		Violations:       violations,
		Decision:         decision,
		RequiresApproval: approval,
	}
}

// Blocked is a convenience accessor
func (r *ValidationResult) Blocked() bool {
	return r.Decision == DecisionBlocked
}

// ApprovalReasons collects the messages of approval-mode violations
func (r *ValidationResult) ApprovalReasons() []string {
	var reasons []string
	for _, v := range r.Violations {
		if v.Response == ResponseRequireApproval {
			reasons = append(reasons, v.Message)
		}
	}
	return reasons
}
