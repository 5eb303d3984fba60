package policy

import (
	"strconv"

	"github.com/clusterguard/clusterguard/internal/models"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Matches evaluates a typed condition against a subject. Pure function:
// no state, no side effects, identical inputs give identical answers.
//
// A missing field never satisfies a value comparison; only the `absent`
// operator matches it. "limits missing" is expressed as
// {field: resources.limits, op: absent}, not as a failed equality.
func Matches(cond *models.Condition, subject *models.Subject) bool {
	value, present := subject.Field(cond.Field)

	switch cond.Op {
	case models.OpPresent:
		return present
	case models.OpAbsent:
		return !present
	}

	if !present {
		return false
	}

	switch cond.Op {
	case models.OpEq:
		return equalValues(value, cond.Value)
	case models.OpNe:
		return !equalValues(value, cond.Value)
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		a, aok := toNumber(value)
		b, bok := toNumber(cond.Value)
		if !aok || !bok {
			return false
		}
		switch cond.Op {
		case models.OpGt:
			return a > b
		case models.OpGte:
			return a >= b
		case models.OpLt:
			return a < b
		default:
			return a <= b
		}
	case models.OpIn:
		return member(value, cond.Value)
	case models.OpNotIn:
		return !member(value, cond.Value)
	}
	return false
}

// member tests list membership; a non-list literal never matches
func member(value, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(value, item) {
			return true
		}
	}
	return false
}

// equalValues compares across the types YAML and JSON decoding produce:
// ints vs floats, quantity strings vs numbers, plain strings, bools.
func equalValues(a, b any) bool {
	if an, aok := toNumber(a); aok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		return bok && as == bs
	}
	return false
}

// toNumber normalizes numeric-ish values to float64. Strings are tried
// as plain numbers first, then as Kubernetes quantities so "500m" and
// "2Gi" compare in cores and bytes respectively.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
		if q, err := resource.ParseQuantity(n); err == nil {
			return q.AsApproximateFloat64(), true
		}
	}
	return 0, false
}
