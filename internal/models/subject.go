package models

import (
	"fmt"
	"strings"
)

// SubjectKind selects the shape of the thing being evaluated
type SubjectKind string

const (
	// SubjectAction is a proposed infrastructure mutation (create_cluster, scale_cluster, ...)
	SubjectAction SubjectKind = "action"
	// SubjectConfiguration is a desired-state object (workload spec, profile, ...)
	SubjectConfiguration SubjectKind = "configuration"
)

// Subject is the unit of policy evaluation. Fields is treated as
// read-only for the whole evaluation; nothing in the engine mutates it.
type Subject struct {
	Kind   SubjectKind
	Type   string // action type, empty for configurations
	Actor  string
	Fields map[string]any
}

// NewAction builds an action subject
func NewAction(actionType string, fields map[string]any) *Subject {
	return &Subject{Kind: SubjectAction, Type: actionType, Fields: fields}
}

// NewConfiguration builds a configuration subject
func NewConfiguration(fields map[string]any) *Subject {
	return &Subject{Kind: SubjectConfiguration, Fields: fields}
}

// Field resolves a dotted path ("resources.limits.cpu") against the
// field map. The second return distinguishes "present" from "absent":
// a rule testing for missing limits needs to see absence, not a zero value.
func (s *Subject) Field(path string) (any, bool) {
	if path == "type" && s.Type != "" {
		return s.Type, true
	}
	if s.Fields == nil {
		return nil, false
	}

	var current any = s.Fields
	for _, part := range strings.Split(path, ".") {
		m, ok := asStringMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Summary renders a short human-readable description for audit records
func (s *Subject) Summary() string {
	if s.Kind == SubjectAction {
		target := "unknown"
		if v, ok := s.Fields["target"]; ok {
			target = fmt.Sprintf("%v", v)
		} else if v, ok := s.Fields["cluster_name"]; ok {
			target = fmt.Sprintf("%v", v)
		}
		t := s.Type
		if t == "" {
			t = "unknown"
		}
		return fmt.Sprintf("%s on %s", t, target)
	}
	return fmt.Sprintf("configuration with %d fields", len(s.Fields))
}

// CELInput converts the subject to the map handed to CEL programs.
// Type and kind are folded in so expressions can reference subject.type.
func (s *Subject) CELInput() map[string]any {
	input := make(map[string]any, len(s.Fields)+2)
	for k, v := range s.Fields {
		input[k] = v
	}
	input["kind"] = string(s.Kind)
	if s.Type != "" {
		input["type"] = s.Type
	}
	return input
}

// asStringMap handles both decoded-JSON and decoded-YAML nesting
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
